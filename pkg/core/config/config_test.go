package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/modelerr"
	"lbo_valuation/pkg/core/valuation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDeal_AllFormatsAgree(t *testing.T) {
	yamlFile, err := LoadDeal(filepath.Join("testdata", "retailco.yaml"))
	require.NoError(t, err)

	for _, name := range []string{"retailco.json", "retailco.hjson"} {
		t.Run(name, func(t *testing.T) {
			f, err := LoadDeal(filepath.Join("testdata", name))
			require.NoError(t, err)

			want, err := yamlFile.Assumptions()
			require.NoError(t, err)
			got, err := f.Assumptions()
			require.NoError(t, err)
			assert.Equal(t, want, got)

			wantDeal, err := yamlFile.ToDeal()
			require.NoError(t, err)
			gotDeal, err := f.ToDeal()
			require.NoError(t, err)
			assert.Equal(t, wantDeal.Tranches, gotDeal.Tranches)
			assert.Equal(t, wantDeal.EntryMultiple, gotDeal.EntryMultiple)
		})
	}
}

func TestLoadDeal_YAMLConversion(t *testing.T) {
	f, err := LoadDeal(filepath.Join("testdata", "retailco.yaml"))
	require.NoError(t, err)

	a, err := f.Assumptions()
	require.NoError(t, err)
	assert.Equal(t, 500.0, a.BaseRevenue)
	assert.Equal(t, 5, a.Horizon())
	assert.Equal(t, assumption.TerminalPerpetuity, a.Terminal.Method)
	assert.Equal(t, 0.10, a.Discount.Rate)

	d, err := f.ToDeal()
	require.NoError(t, err)
	assert.Equal(t, "RetailCo", d.Name)
	assert.Equal(t, valuation.IRRExact, d.IRRMethod)
	require.Len(t, d.Tranches, 2)
	assert.Equal(t, 400.0, d.Tranches[0].Principal, "leverage 4.0x of entry EBITDA 100")
	assert.Equal(t, 150.0, d.Tranches[1].Principal)
	assert.Equal(t, 10.0, d.Bridge.SharesOutstanding)
	assert.Equal(t, 0.20, f.Deal.TargetIRR)

	in, err := f.SimulationInput()
	require.NoError(t, err)
	require.Len(t, in.Distributions, 2)
	assert.Equal(t, assumption.DistTriangular, in.Distributions[1].Distribution)
	assert.Equal(t, 9.0, in.Distributions[1].Mode)
	require.NotNil(t, in.Waterfall)
	assert.Len(t, in.Waterfall.Tiers, 4)
	assert.Equal(t, "GP", in.Waterfall.Tiers[2].CarryClass)

	target, comps, transactions, ok := f.Relative()
	require.True(t, ok)
	assert.Equal(t, 100.0, target.EBITDA)
	assert.Len(t, comps, 3)
	require.Len(t, transactions, 1)
	assert.True(t, transactions[0].IsTransaction)

	require.NotNil(t, f.Sensitivity)
	assert.Equal(t, []float64{7, 8, 9}, f.Sensitivity.EntryMultiples)
}

func TestSimulationInput_ExitMultipleFromPeers(t *testing.T) {
	f, err := LoadDeal(filepath.Join("testdata", "retailco.yaml"))
	require.NoError(t, err)
	f.Simulation.ExitMultipleFromPeers = true

	in, err := f.SimulationInput()
	require.NoError(t, err)
	require.Len(t, in.Distributions, 2, "the configured exit multiple is replaced")
	fitted := in.Distributions[1]
	assert.Equal(t, assumption.VarExitMultiple, fitted.Variable)
	assert.Equal(t, assumption.DistNormal, fitted.Distribution)
	assert.InDelta(t, 9.25, fitted.Mean, 1e-12)
	assert.Equal(t, 8.5, fitted.Lo())
	assert.Equal(t, 10.0, fitted.Hi())

	f.Peers = f.Peers[:1]
	_, err = f.SimulationInput()
	assert.True(t, errors.Is(err, modelerr.ErrInvalidConfiguration))
}

func TestSimulationOptions_Layering(t *testing.T) {
	f, err := LoadDeal(filepath.Join("testdata", "retailco.yaml"))
	require.NoError(t, err)

	opts := f.SimulationOptions(Settings{})
	assert.Equal(t, 2000, opts.Iterations)
	assert.Equal(t, uint64(7), opts.Seed)
	assert.True(t, opts.KeepDraws)
	assert.Equal(t, 0.10, opts.MaxInvalidFraction)
	assert.Equal(t, 0.95, opts.VaRConfidence, "unset values keep defaults")

	seed := uint64(99)
	opts = f.SimulationOptions(Settings{Iterations: 500, Workers: 3, Seed: &seed})
	assert.Equal(t, 500, opts.Iterations)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, uint64(99), opts.Seed)

	var empty DealFile
	assert.Equal(t, 10000, empty.SimulationOptions(Settings{}).Iterations)
	assert.Nil(t, empty.WaterfallSpec())
	_, _, _, ok := empty.Relative()
	assert.False(t, ok)
}

func TestParseDeal_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"unknown yaml key", "name: X\ndeal:\n  entry_multipel: 8\n", FormatYAML},
		{"unknown json key", `{"name":"X","deals":{}}`, FormatJSON},
		{"wrong type", `{"name":"X","deal":{"entry_ebitda":"lots"}}`, FormatJSON},
		{"bad format", `{}`, Format("toml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDeal([]byte(tt.data), tt.format)
			require.Error(t, err)
			assert.True(t, errors.Is(err, modelerr.ErrInvalidConfiguration))
		})
	}
}

func TestParseDeal_RepairsJSON(t *testing.T) {
	f, err := ParseDeal([]byte(`{'name': 'X', 'operating': {'base_revenue': 10, 'growth_rates': [0.1,],},}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "X", f.Name)
	assert.Equal(t, []float64{0.1}, f.Operating.GrowthRates)
}

func TestParseDeal_NoDomainValidation(t *testing.T) {
	f, err := ParseDeal([]byte("operating:\n  base_revenue: -5\n  ebitda_margin: 3\n"), FormatYAML)
	require.NoError(t, err)

	a, err := f.Assumptions()
	require.NoError(t, err)
	err = a.Validate()
	assert.True(t, errors.Is(err, modelerr.ErrInvalidAssumption))
	assert.Equal(t, "base_revenue", modelerr.FieldOf(err))
}

func TestAssumptions_GrowthPath(t *testing.T) {
	doc := `
operating:
  base_revenue: 500
  ebitda_margin: 0.2
  growth_path:
    name: linear
    years: 4
    params: {start: 0.10, end: 0.04}
`
	f, err := ParseDeal([]byte(doc), FormatYAML)
	require.NoError(t, err)
	a, err := f.Assumptions()
	require.NoError(t, err)
	require.Equal(t, 4, a.Horizon())
	for i, want := range []float64{0.10, 0.08, 0.06, 0.04} {
		assert.InDelta(t, want, a.GrowthRates[i], 1e-12)
	}

	tests := []struct {
		name  string
		op    OperatingSection
		field string
	}{
		{"both given", OperatingSection{GrowthRates: []float64{0.05}, GrowthPath: &GrowthPathSection{Name: "constant", Years: 3}}, "operating.growth_path"},
		{"unknown strategy", OperatingSection{GrowthPath: &GrowthPathSection{Name: "random-walk", Years: 3}}, "operating.growth_path.name"},
		{"no horizon", OperatingSection{GrowthPath: &GrowthPathSection{Name: "constant"}}, "operating.growth_path"},
		{"bad decay", OperatingSection{GrowthPath: &GrowthPathSection{Name: "exponential", Years: 3, Params: map[string]float64{"start": 0.1}}}, "operating.growth_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&DealFile{Operating: tt.op}).Assumptions()
			require.Error(t, err)
			assert.True(t, errors.Is(err, modelerr.ErrInvalidConfiguration))
			assert.Equal(t, tt.field, modelerr.FieldOf(err))
		})
	}
}

func TestToDeal_TrancheSizing(t *testing.T) {
	f := &DealFile{Deal: DealSection{EntryEBITDA: 50, Tranches: []TrancheSection{{Name: "A", Principal: 10, Leverage: 2}}}}
	_, err := f.ToDeal()
	assert.Equal(t, "deal.tranches[0]", modelerr.FieldOf(err))

	f.Deal.Tranches = []TrancheSection{{Name: "A"}}
	_, err = f.ToDeal()
	assert.True(t, errors.Is(err, modelerr.ErrInvalidConfiguration))

	sweep := 0.5
	f.Deal.SweepPercent = &sweep
	f.Deal.Tranches = []TrancheSection{{Name: "A", Leverage: 3}}
	d, err := f.ToDeal()
	require.NoError(t, err)
	assert.Equal(t, 150.0, d.Tranches[0].Principal)
	assert.Equal(t, 0.5, *d.SweepPercent)
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{"a.yml": FormatYAML, "a.YAML": FormatYAML, "a.json": FormatJSON, "a.hjson": FormatHJSON} {
		got, err := FormatOf(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := FormatOf("deal.toml")
	assert.True(t, errors.Is(err, modelerr.ErrInvalidConfiguration))

	_, err = LoadDeal(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseEnv(t *testing.T) {
	s, err := ParseEnv("LBO_LOG_LEVEL=debug\nLBO_LOG_PRETTY=true\nLBO_WORKERS=4\nLBO_SEED=123\nLBO_ITERATIONS=5000\n")
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
	assert.True(t, s.LogPretty)
	assert.Equal(t, 4, s.Workers)
	assert.Equal(t, 5000, s.Iterations)
	require.NotNil(t, s.Seed)
	assert.Equal(t, uint64(123), *s.Seed)
	assert.Equal(t, "debug", s.Logger().Level)

	s, err = ParseEnv("")
	require.NoError(t, err)
	assert.Nil(t, s.Seed)
	assert.Equal(t, "info", s.Logger().Level)
}

func TestParseEnv_Errors(t *testing.T) {
	for _, env := range []string{"LBO_WORKERS=many", "LBO_ITERATIONS=0", "LBO_SEED=-1", "LBO_LOG_PRETTY=maybe"} {
		_, err := ParseEnv(env)
		assert.True(t, errors.Is(err, modelerr.ErrInvalidConfiguration), env)
	}
}

func TestLoadSettings_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LBO_ITERATIONS=321\n"), 0o600))
	t.Setenv(EnvIterations, "")
	require.NoError(t, os.Unsetenv(EnvIterations))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 321, s.Iterations)
	require.NoError(t, os.Unsetenv(EnvIterations))

	_, err = LoadSettings(filepath.Join(t.TempDir(), "absent.env"))
	assert.True(t, errors.Is(err, modelerr.ErrInvalidConfiguration))
}

func TestLoadSettings_DefaultDotEnv(t *testing.T) {
	t.Setenv(EnvWorkers, "")
	require.NoError(t, os.Unsetenv(EnvWorkers))

	t.Run("absent", func(t *testing.T) {
		t.Chdir(t.TempDir())
		s, err := LoadSettings()
		require.NoError(t, err)
		assert.Zero(t, s.Workers)
	})

	t.Run("present", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LBO_WORKERS=3\n"), 0o600))
		t.Chdir(dir)
		s, err := LoadSettings()
		require.NoError(t, err)
		assert.Equal(t, 3, s.Workers)
		require.NoError(t, os.Unsetenv(EnvWorkers))
	})

	t.Run("malformed", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LBO-WORKERS=3\n"), 0o600))
		t.Chdir(dir)
		_, err := LoadSettings()
		require.Error(t, err)
		assert.True(t, errors.Is(err, modelerr.ErrInvalidConfiguration))
		assert.Equal(t, "env", modelerr.FieldOf(err))
	})

	t.Run("unreadable", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, ".env"), 0o700))
		t.Chdir(dir)
		_, err := LoadSettings()
		assert.True(t, errors.Is(err, modelerr.ErrInvalidConfiguration))
	})
}
