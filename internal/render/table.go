package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/danmuck/edgemgmt/internal/protocol"
)

const missing = "-"

func writeTable(w io.Writer, p Printer, rows []protocol.Record) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	headers := make([]string, len(p.Columns))
	for i := range p.Columns {
		headers[i] = p.header(i)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	cells := make([]string, len(p.Columns))
	for _, row := range rows {
		for i, col := range p.Columns {
			cells[i] = cell(row, col)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// writePairs renders a single event on one line as name=value pairs.
func writePairs(w io.Writer, p Printer, ev protocol.Record) error {
	parts := make([]string, len(p.Columns))
	for i, col := range p.Columns {
		parts[i] = strings.ToLower(p.header(i)) + "=" + cell(ev, col)
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}

func cell(r protocol.Record, col string) string {
	v, ok := r.Get(col)
	if !ok {
		return missing
	}
	text := v.Text()
	if text == "" {
		return missing
	}
	// tabwriter cells cannot hold tabs or newlines
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(text)
}
