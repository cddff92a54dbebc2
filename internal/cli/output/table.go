package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Table renders rows under headers. Text mode draws a box table, markdown
// mode a pipe table. JSON mode renders nothing; callers emit documents.
func (r *Renderer) Table(headers []string, rows [][]string) {
	mode := r.EffectiveMode()
	if mode == ModeJSON {
		return
	}
	if len(rows) == 0 {
		r.Println("(none)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault

	if mode == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}
