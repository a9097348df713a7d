// Package report renders deal, simulation and distribution results as
// markdown tables, converts them to HTML and exports raw draws.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// mdTable accumulates one markdown table. The first column is a left-aligned
// label; every other column is right-aligned.
type mdTable struct {
	w table.Writer
}

func newTable(headers ...string) *mdTable {
	w := table.NewWriter()
	style := table.StyleDefault
	style.Format.Header = text.FormatDefault
	w.SetStyle(style)

	header := make(table.Row, len(headers))
	cfgs := make([]table.ColumnConfig, len(headers))
	for i, h := range headers {
		header[i] = escape(h)
		align := text.AlignRight
		if i == 0 {
			align = text.AlignLeft
		}
		cfgs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: align}
	}
	w.AppendHeader(header)
	w.SetColumnConfigs(cfgs)
	return &mdTable{w: w}
}

func (t *mdTable) add(cells ...string) {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = escape(c)
	}
	t.w.AppendRow(row)
}

func (t *mdTable) write(sb *strings.Builder) {
	sb.WriteString(t.w.RenderMarkdown())
	sb.WriteString("\n\n")
}

func escape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "&#124;")
}

func heading(sb *strings.Builder, level int, title string) {
	sb.WriteString(strings.Repeat("#", level) + " " + title + "\n\n")
}

// =============================================================================
// NUMBER FORMATTING
// =============================================================================

func (r *Renderer) num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", r.Precision, v)
}

func (r *Renderer) pct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f%%", r.Precision, v*100)
}

func (r *Renderer) mult(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*fx", r.Precision, v)
}
