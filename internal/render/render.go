// Package render turns session results into text for a terminal or a pipe.
//
// Known commands get fixed-width tables built from a Printer; anything else
// is passed through as one JSON object per line, field order untouched.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/edgemgmt/internal/protocol"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
	FormatRaw   Format = "raw"
)

var ErrUnknownFormat = errors.New("render: unknown format")

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatTable, FormatJSON, FormatYAML, FormatTOML, FormatRaw}
}

// ParseFormat accepts a format name; empty selects the table format.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	if f == "" {
		return FormatTable, nil
	}
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
}

// Options control how Rows and Event render.
type Options struct {
	Format   Format
	Registry *Registry
	// Columns, when set, selects fields ad hoc and takes precedence over
	// any registered printer.
	Columns []string
}

func (o Options) printer(commandLine string) (Printer, bool) {
	if len(o.Columns) > 0 {
		return Printer{Command: CommandName(commandLine), Columns: o.Columns}, true
	}
	if o.Registry == nil {
		return Printer{}, false
	}
	return o.Registry.Lookup(commandLine)
}

// Rows writes the reply to commandLine.
func Rows(w io.Writer, commandLine string, rows []protocol.Record, opts Options) error {
	p, ok := opts.printer(commandLine)
	if ok {
		rows = project(rows, p.Columns)
	}
	switch opts.Format {
	case FormatTable, "":
		if !ok {
			return writeRaw(w, rows...)
		}
		return writeTable(w, p, rows)
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatYAML:
		return writeYAML(w, rows)
	case FormatTOML:
		return writeTOML(w, "rows", rows)
	case FormatRaw:
		return writeRaw(w, rows...)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

// Event writes one event received on the subscription opened by
// commandLine. Each call produces a self-contained chunk so events can be
// streamed as they arrive.
func Event(w io.Writer, commandLine string, ev protocol.Record, opts Options) error {
	p, ok := opts.printer(commandLine)
	if ok {
		ev = projectOne(ev, p.Columns)
	}
	switch opts.Format {
	case FormatTable, "":
		if !ok {
			return writeRaw(w, ev)
		}
		return writePairs(w, p, ev)
	case FormatJSON, FormatRaw:
		return writeRaw(w, ev)
	case FormatYAML:
		if _, err := io.WriteString(w, "---\n"); err != nil {
			return err
		}
		return writeYAMLDocument(w, recordNode(ev))
	case FormatTOML:
		return writeTOML(w, "event", []protocol.Record{ev})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

func project(rows []protocol.Record, columns []string) []protocol.Record {
	out := make([]protocol.Record, len(rows))
	for i, row := range rows {
		out[i] = projectOne(row, columns)
	}
	return out
}

// projectOne keeps the selected columns in column order. Missing columns
// are left out rather than invented.
func projectOne(r protocol.Record, columns []string) protocol.Record {
	var out protocol.Record
	for _, col := range columns {
		if v, ok := r.Get(col); ok {
			out.Set(col, v)
		}
	}
	return out
}
