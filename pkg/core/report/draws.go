package report

import (
	"fmt"
	"io"

	"lbo_valuation/pkg/core/simulation"

	"github.com/vmihailenco/msgpack/v5"
)

// DrawExport is the msgpack envelope for raw simulation draws.
type DrawExport struct {
	RunID      string            `json:"run_id"`
	Seed       uint64            `json:"seed"`
	Iterations int               `json:"iterations"`
	Draws      []simulation.Draw `json:"draws"`
}

// WriteDraws encodes a run's retained draws to w. Field names follow the
// JSON tags so downstream readers see the same keys in either format.
func WriteDraws(w io.Writer, runID string, res *simulation.Result) error {
	if res.Draws == nil {
		return fmt.Errorf("EXPORT_ERROR: run %s kept no draws", runID)
	}
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	err := enc.Encode(DrawExport{
		RunID:      runID,
		Seed:       res.Seed,
		Iterations: res.Iterations,
		Draws:      res.Draws,
	})
	if err != nil {
		return fmt.Errorf("EXPORT_ERROR: %w", err)
	}
	return nil
}

// ReadDraws decodes an export written by WriteDraws.
func ReadDraws(r io.Reader) (DrawExport, error) {
	var out DrawExport
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&out); err != nil {
		return DrawExport{}, fmt.Errorf("EXPORT_ERROR: %w", err)
	}
	return out, nil
}
