package projection_test

import (
	"testing"

	"lbo_valuation/pkg/core/projection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrowthPaths(t *testing.T) {
	tests := []struct {
		name    string
		path    projection.GrowthPath
		horizon int
		want    []float64
	}{
		{"constant", projection.ConstantGrowth{Rate: 0.08}, 3, []float64{0.08, 0.08, 0.08}},
		{"linear fade", projection.LinearFade{Start: 0.10, End: 0.04}, 4, []float64{0.10, 0.08, 0.06, 0.04}},
		{"linear single period", projection.LinearFade{Start: 0.10, End: 0.04}, 1, []float64{0.10}},
		{"exponential", projection.ExponentialDecay{Start: 0.20, End: 0.04, Decay: 0.5}, 3, []float64{0.20, 0.12, 0.08}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.path.Rates(tt.horizon)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestSCurve_MonotoneBetweenEndpoints(t *testing.T) {
	rates, err := projection.SCurve{Start: 0.12, End: 0.03}.Rates(7)
	require.NoError(t, err)

	for i := 1; i < len(rates); i++ {
		assert.Less(t, rates[i], rates[i-1])
	}
	assert.InDelta(t, 0.075, rates[3], 1e-12, "midpoint sits halfway")
	assert.Less(t, rates[0], 0.12)
	assert.Greater(t, rates[6], 0.03)
}

func TestGrowthPaths_Errors(t *testing.T) {
	_, err := projection.ConstantGrowth{Rate: 0.05}.Rates(0)
	assert.Error(t, err)

	_, err = projection.ExponentialDecay{Start: 0.1, End: 0.02, Decay: 0}.Rates(3)
	assert.Error(t, err)
}

func TestGrowthPathByName(t *testing.T) {
	p, err := projection.GrowthPathByName("Linear", map[string]float64{"start": 0.1, "end": 0.05})
	require.NoError(t, err)
	assert.Equal(t, "Linear", p.Name())

	p, err = projection.GrowthPathByName(" S-Curve ", map[string]float64{"start": 0.1, "end": 0.05})
	require.NoError(t, err)
	assert.Equal(t, "S-Curve", p.Name())

	for _, name := range []string{"random-walk", "manual", ""} {
		_, err = projection.GrowthPathByName(name, nil)
		assert.Error(t, err, name)
	}
}
