package report

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

// htmlTable is one <table> read back from rendered HTML.
type htmlTable struct {
	Title   string     // text of the nearest preceding heading
	Headers []string   // first row
	Rows    [][]string // remaining rows, cell text trimmed
}

// Cell returns the cell under header col in the row whose first cell is label.
func (t htmlTable) Cell(label, col string) (string, bool) {
	idx := -1
	for i, h := range t.Headers {
		if h == col {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", false
	}
	for _, r := range t.Rows {
		if len(r) > idx && r[0] == label {
			return r[idx], true
		}
	}
	return "", false
}

func parseHTMLTables(t *testing.T, html string) []htmlTable {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	var tables []htmlTable
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		tb := htmlTable{Title: strings.TrimSpace(table.PrevAllFiltered("h1, h2, h3, h4").First().Text())}
		table.Find("tr").Each(func(i int, row *goquery.Selection) {
			var cells []string
			row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}
			if i == 0 {
				tb.Headers = cells
				return
			}
			tb.Rows = append(tb.Rows, cells)
		})
		tables = append(tables, tb)
	})
	return tables
}

func renderHTML(t *testing.T, md string) []htmlTable {
	t.Helper()
	html, err := HTML(md)
	require.NoError(t, err)
	return parseHTMLTables(t, html)
}

func findTable(tables []htmlTable, title string) (htmlTable, bool) {
	for _, tb := range tables {
		if tb.Title == title {
			return tb, true
		}
	}
	return htmlTable{}, false
}
