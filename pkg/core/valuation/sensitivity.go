package valuation

import (
	"encoding/json"
	"math"

	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/modelerr"
	"lbo_valuation/pkg/core/projection"
)

// SensitivityGrid is a two-way table of a single output.
// Values[i][j] corresponds to Rows[i] and Cols[j]; NaN marks an invalid cell.
type SensitivityGrid struct {
	RowLabel string      `json:"row_label"`
	ColLabel string      `json:"col_label"`
	Output   string      `json:"output"`
	Rows     []float64   `json:"rows"`
	Cols     []float64   `json:"cols"`
	Values   [][]float64 `json:"values"`
}

// Valid reports whether cell (i, j) holds a value.
func (g SensitivityGrid) Valid(i, j int) bool {
	return !math.IsNaN(g.Values[i][j])
}

// MarshalJSON writes invalid cells as null.
func (g SensitivityGrid) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(g.Values))
	for i, row := range g.Values {
		values[i] = make([]*float64, len(row))
		for j := range row {
			if g.Valid(i, j) {
				values[i][j] = &row[j]
			}
		}
	}
	type alias SensitivityGrid
	return json.Marshal(struct {
		alias
		Values [][]*float64 `json:"values"`
	}{alias(g), values})
}

// Sensitivity tabulates enterprise value over discount rate × terminal
// growth for a fixed projection. Cells where the rate does not exceed
// growth are NaN.
func Sensitivity(a assumption.Assumptions, rates, growths []float64) (SensitivityGrid, error) {
	if len(rates) == 0 || len(growths) == 0 {
		return SensitivityGrid{}, modelerr.Configuration("sensitivity", "rates and growths must be non-empty")
	}
	rows, err := projection.Project(a)
	if err != nil {
		return SensitivityGrid{}, err
	}

	grid := newGrid("discount_rate", "terminal_growth", "enterprise_value", rates, growths)
	for i, r := range rates {
		for j, g := range growths {
			in := NewDCFInput(rows, a, r)
			in.Terminal = assumption.TerminalSpec{Method: assumption.TerminalPerpetuity, GrowthRate: g}
			res, err := Discount(in)
			if err != nil {
				continue
			}
			grid.Values[i][j] = res.EnterpriseValue
		}
	}
	return grid, nil
}

// ReturnsSensitivity tabulates MOIC over entry multiple × exit multiple.
// Combinations that cannot be funded are NaN.
func ReturnsSensitivity(d Deal, a assumption.Assumptions, entryMultiples, exitMultiples []float64) (SensitivityGrid, error) {
	if len(entryMultiples) == 0 || len(exitMultiples) == 0 {
		return SensitivityGrid{}, modelerr.Configuration("sensitivity", "entry and exit multiples must be non-empty")
	}
	if _, err := EvaluateDeal(d, a); err != nil {
		return SensitivityGrid{}, err
	}

	grid := newGrid("entry_multiple", "exit_multiple", "moic", entryMultiples, exitMultiples)
	for i, entry := range entryMultiples {
		for j, exit := range exitMultiples {
			c := d
			c.EntryMultiple = entry
			c.ExitMultiple = exit
			out, err := EvaluateDeal(c, a)
			if err != nil {
				continue
			}
			grid.Values[i][j] = out.Returns.MOIC
		}
	}
	return grid, nil
}

func newGrid(rowLabel, colLabel, output string, rows, cols []float64) SensitivityGrid {
	g := SensitivityGrid{
		RowLabel: rowLabel,
		ColLabel: colLabel,
		Output:   output,
		Rows:     append([]float64(nil), rows...),
		Cols:     append([]float64(nil), cols...),
		Values:   make([][]float64, len(rows)),
	}
	for i := range g.Values {
		g.Values[i] = make([]float64, len(cols))
		for j := range g.Values[i] {
			g.Values[i][j] = math.NaN()
		}
	}
	return g
}
