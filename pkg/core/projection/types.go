package projection

// Row is one projected period of the free-cash-flow build.
// Period 1 is the first projected period; period 0 is the base.
type Row struct {
	Period   int     `json:"period"`
	Revenue  float64 `json:"revenue"`
	EBITDA   float64 `json:"ebitda"`
	DA       float64 `json:"da"`
	EBIT     float64 `json:"ebit"`
	Tax      float64 `json:"tax"`
	NOPAT    float64 `json:"nopat"`
	Capex    float64 `json:"capex"`
	NWC      float64 `json:"nwc"`
	DeltaNWC float64 `json:"delta_nwc"`
	FCF      float64 `json:"fcf"`
}

// FreeCashFlows extracts the FCF series in period order.
func FreeCashFlows(rows []Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.FCF
	}
	return out
}

// FinalEBITDA returns the last period's EBITDA, or 0 for an empty projection.
func FinalEBITDA(rows []Row) float64 {
	if len(rows) == 0 {
		return 0
	}
	return rows[len(rows)-1].EBITDA
}
