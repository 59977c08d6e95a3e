package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter renders a view as a rounded ASCII table.
type TableFormatter struct{}

// Format renders view as a table.
func (f *TableFormatter) Format(view View) (string, error) {
	if len(view.Rows) == 0 && view.Empty != "" {
		return view.Empty, nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	if view.Title != "" {
		t.SetTitle(view.Title)
	}
	t.AppendHeader(toRow(view.Header))

	for _, row := range view.Rows {
		t.AppendRow(toRow(row))
	}

	if view.Footer != "" && len(view.Header) > 0 {
		footer := make([]string, len(view.Header))
		footer[len(footer)-1] = view.Footer
		t.AppendFooter(toRow(footer))
	}

	return t.Render(), nil
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, cell := range cells {
		row[i] = cell
	}
	return row
}
