package domain

import "strconv"

// DateLayout is the DATE column format expected by the warehouse.
const DateLayout = "2006-01-02 15:04:05"

// Columns of the hand-off table, in order.
var Columns = []string{"ID", "SOURCE", "AUTHOR", "DATE", "TITLE", "URL", "DESCRIPTION", "CONTENT"}

// Table is the rectangular form handed to downstream collaborators.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func NewTable(articles []Article) Table {
	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, a.Row())
	}

	cols := make([]string, len(Columns))
	copy(cols, Columns)

	return Table{Columns: cols, Rows: rows}
}

// Row renders the article in Columns order.
func (a Article) Row() []string {
	return []string{
		strconv.Itoa(a.ID),
		a.Source,
		a.Author,
		a.Date.Format(DateLayout),
		a.Title,
		a.URL,
		a.Description,
		a.Content,
	}
}

func (t Table) Len() int {
	return len(t.Rows)
}
