package projection

import (
	"fmt"
	"math"
	"strings"
)

// =============================================================================
// GROWTH PATH STRATEGIES
// =============================================================================

// GrowthPath produces the ordered growth-rate sequence for a horizon.
type GrowthPath interface {
	// Name returns the strategy identifier
	Name() string

	// Rates returns one growth rate per period
	Rates(horizon int) ([]float64, error)
}

// ConstantGrowth grows every period at Rate.
type ConstantGrowth struct {
	Rate float64 `json:"rate"`
}

func (s ConstantGrowth) Name() string { return "Constant" }

func (s ConstantGrowth) Rates(horizon int) ([]float64, error) {
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}
	out := make([]float64, horizon)
	for i := range out {
		out[i] = s.Rate
	}
	return out, nil
}

// LinearFade interpolates linearly from Start (period 1) to End (last period).
type LinearFade struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s LinearFade) Name() string { return "Linear" }

func (s LinearFade) Rates(horizon int) ([]float64, error) {
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}
	out := make([]float64, horizon)
	if horizon == 1 {
		out[0] = s.Start
		return out, nil
	}
	step := (s.End - s.Start) / float64(horizon-1)
	for i := range out {
		out[i] = s.Start + step*float64(i)
	}
	out[horizon-1] = s.End
	return out, nil
}

// ExponentialDecay converges from Start toward End, closing Decay of the
// remaining gap each period. Formula: g_t = End + (Start-End) × (1-Decay)^(t-1)
type ExponentialDecay struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Decay float64 `json:"decay"` // (0,1]
}

func (s ExponentialDecay) Name() string { return "Exponential" }

func (s ExponentialDecay) Rates(horizon int) ([]float64, error) {
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}
	if s.Decay <= 0 || s.Decay > 1 {
		return nil, fmt.Errorf("exponential decay must be within (0,1], got %v", s.Decay)
	}
	out := make([]float64, horizon)
	for i := range out {
		out[i] = s.End + (s.Start-s.End)*math.Pow(1-s.Decay, float64(i))
	}
	return out, nil
}

// SCurve fades from Start to End along a logistic curve centered on the
// horizon midpoint. Steepness defaults to 1.
type SCurve struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Steepness float64 `json:"steepness"`
}

func (s SCurve) Name() string { return "S-Curve" }

func (s SCurve) Rates(horizon int) ([]float64, error) {
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}
	k := s.Steepness
	if k == 0 {
		k = 1
	}
	mid := float64(horizon-1) / 2
	out := make([]float64, horizon)
	for i := range out {
		w := 1 / (1 + math.Exp(-k*(float64(i)-mid)))
		out[i] = s.Start + (s.End-s.Start)*w
	}
	return out, nil
}

// GrowthPathByName builds a strategy from its name and numeric params.
// Recognized params: rate, start, end, decay, steepness.
func GrowthPathByName(name string, params map[string]float64) (GrowthPath, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "constant", "flat":
		return ConstantGrowth{Rate: params["rate"]}, nil
	case "linear":
		return LinearFade{Start: params["start"], End: params["end"]}, nil
	case "exponential":
		return ExponentialDecay{Start: params["start"], End: params["end"], Decay: params["decay"]}, nil
	case "s-curve", "scurve":
		return SCurve{Start: params["start"], End: params["end"], Steepness: params["steepness"]}, nil
	default:
		return nil, fmt.Errorf("unknown growth strategy %q (supported: constant, linear, exponential, s-curve)", name)
	}
}

func checkHorizon(horizon int) error {
	if horizon < 1 {
		return fmt.Errorf("horizon must be at least 1, got %d", horizon)
	}
	return nil
}
