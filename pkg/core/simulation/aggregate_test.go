package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	s := summarize([]float64{5, 1, 4, 2, 3}, []float64{0.5, 1})

	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
	assert.Equal(t, 3.0, s.Mean)
	assert.InDelta(t, 1.5811388, s.StdDev, 1e-6)
	p50, ok := s.At(0.5)
	require.True(t, ok)
	assert.Equal(t, s.Median, p50)
	p100, _ := s.At(1)
	assert.Equal(t, 5.0, p100)

	_, ok = s.At(0.25)
	assert.False(t, ok)
}

func TestSummarize_SingleAndEmpty(t *testing.T) {
	one := summarize([]float64{0.2}, []float64{0.05, 0.95})
	assert.Equal(t, 0.2, one.Mean)
	assert.Zero(t, one.StdDev)
	assert.Equal(t, 0.2, one.Median)

	assert.Equal(t, Stats{}, summarize(nil, []float64{0.5}))
}

func TestValueAtRisk(t *testing.T) {
	irr := make([]float64, 100)
	for i := range irr {
		irr[i] = float64(i-10) / 100 // -0.10 .. 0.89
	}

	v, cv := valueAtRisk(irr, 0.95)
	assert.InDelta(t, -0.06, v, 1e-9)
	assert.InDelta(t, -0.08, cv, 1e-9)
	assert.LessOrEqual(t, cv, v)

	v, cv = valueAtRisk(nil, 0.95)
	assert.Zero(t, v)
	assert.Zero(t, cv)
}

func TestAggregate_CountsInvalidAndClamped(t *testing.T) {
	draws := []Draw{
		{Index: 0, Valid: true, IRR: 0.20, MOIC: 2.5, ExitEquity: 700, EnterpriseValue: 900},
		{Index: 1, Valid: false, Reason: "INVALID_ASSUMPTION: terminal.growth_rate", Clamped: []string{"exit_multiple"}},
		{Index: 2, Valid: true, IRR: -0.05, MOIC: 0.8, ExitEquity: 200, Clamped: []string{"exit_multiple"}},
		{Index: 3, Valid: true, IRR: 0.10, MOIC: 1.6, ExitEquity: 450, EnterpriseValue: 850},
	}
	opts := DefaultOptions()
	opts.IRRThresholds = []float64{0, 0.15}

	res := aggregate(draws, opts, nil)

	assert.Equal(t, 3, res.Valid)
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, 1, res.InvalidReasons["INVALID_ASSUMPTION: terminal.growth_rate"])
	assert.Equal(t, 2, res.Clamped["exit_multiple"])
	assert.InDelta(t, 2.0/3, res.ProbIRRAbove[0].Probability, 1e-12)
	assert.InDelta(t, 1.0/3, res.ProbIRRAbove[1].Probability, 1e-12)
	assert.InDelta(t, 1.0/3, res.ProbLoss, 1e-12)
	assert.InDelta(t, 875, res.EnterpriseValue.Mean, 1e-9, "draws without a DCF are left out")
}
