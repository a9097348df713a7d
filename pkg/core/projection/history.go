package projection

import (
	"context"
	"fmt"
	"math"
)

// HistoricalSnapshot is the plain numeric history of one entity, oldest first.
type HistoricalSnapshot struct {
	Entity  string    `json:"entity"`
	Years   []int     `json:"years"`
	Revenue []float64 `json:"revenue"`
	EBITDA  []float64 `json:"ebitda"`
}

// HistoricalDataProvider supplies prior-period revenue and EBITDA for a
// named entity. Implementations fetch once, up front; the engines only see
// the returned snapshot.
type HistoricalDataProvider interface {
	Snapshot(ctx context.Context, entity string) (HistoricalSnapshot, error)
}

// StaticHistory serves snapshots from memory.
type StaticHistory map[string]HistoricalSnapshot

// Snapshot implements HistoricalDataProvider.
func (h StaticHistory) Snapshot(_ context.Context, entity string) (HistoricalSnapshot, error) {
	s, ok := h[entity]
	if !ok {
		return HistoricalSnapshot{}, fmt.Errorf("no history for %q", entity)
	}
	return s, nil
}

// HistoricalBase is what a projection needs from history.
type HistoricalBase struct {
	BaseRevenue   float64
	EBITDAMargin  float64 // last-year EBITDA / revenue
	AverageGrowth float64 // compound annual revenue growth over the snapshot
}

// BaseFromHistory derives the base revenue, margin and historical CAGR from
// the most recent year of a snapshot.
func BaseFromHistory(s HistoricalSnapshot) (HistoricalBase, error) {
	n := len(s.Revenue)
	if n == 0 {
		return HistoricalBase{}, fmt.Errorf("snapshot for %q has no revenue", s.Entity)
	}
	last := s.Revenue[n-1]
	if last <= 0 {
		return HistoricalBase{}, fmt.Errorf("snapshot for %q has non-positive latest revenue %v", s.Entity, last)
	}

	base := HistoricalBase{BaseRevenue: last}
	if len(s.EBITDA) == n {
		base.EBITDAMargin = s.EBITDA[n-1] / last
	}
	if n > 1 && s.Revenue[0] > 0 {
		base.AverageGrowth = cagr(s.Revenue[0], last, n-1)
	}
	return base, nil
}

func cagr(start, end float64, periods int) float64 {
	return math.Pow(end/start, 1/float64(periods)) - 1
}
