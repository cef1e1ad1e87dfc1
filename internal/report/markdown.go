package report

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"stock_news/internal/domain"
)

// DefaultCellWidth caps the display width of a single cell.
const DefaultCellWidth = 60

// Markdown renders the table as an aligned Markdown table. Cells are
// flattened to one line and truncated to maxCell display columns; widths
// are measured with runewidth so wide characters stay aligned.
func Markdown(t domain.Table, maxCell int) string {
	if maxCell <= 0 {
		maxCell = DefaultCellWidth
	}

	rows := make([][]string, 0, len(t.Rows)+1)
	rows = append(rows, t.Columns)
	for _, r := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i := range cells {
			if i < len(r) {
				cells[i] = cell(r[i], maxCell)
			}
		}
		rows = append(rows, cells)
	}

	widths := make([]int, len(t.Columns))
	for _, r := range rows {
		for i, c := range r {
			if w := runewidth.StringWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	var sb strings.Builder
	for i, r := range rows {
		writeRow(&sb, r, widths)
		if i == 0 {
			sep := make([]string, len(widths))
			for j, w := range widths {
				sep[j] = strings.Repeat("-", w)
			}
			writeRow(&sb, sep, widths)
		}
	}
	return sb.String()
}

func writeRow(sb *strings.Builder, cells []string, widths []int) {
	sb.WriteString("|")
	for i, w := range widths {
		c := cells[i]
		sb.WriteString(" ")
		sb.WriteString(c)
		if pad := w - runewidth.StringWidth(c); pad > 0 {
			sb.WriteString(strings.Repeat(" ", pad))
		}
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}

func cell(s string, maxWidth int) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	return runewidth.Truncate(s, maxWidth, "…")
}
