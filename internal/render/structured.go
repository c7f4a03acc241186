package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/edgemgmt/internal/protocol"
)

// writeRaw writes one compact JSON object per record.
func writeRaw(w io.Writer, records ...protocol.Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("render: encode json: %w", err)
		}
	}
	return nil
}

func writeJSON(w io.Writer, rows []protocol.Record) error {
	if rows == nil {
		rows = []protocol.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("render: encode json: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, rows []protocol.Record) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	if len(rows) == 0 {
		seq.Style = yaml.FlowStyle
	}
	for _, row := range rows {
		seq.Content = append(seq.Content, recordNode(row))
	}
	return writeYAMLDocument(w, seq)
}

func writeYAMLDocument(w io.Writer, node *yaml.Node) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return fmt.Errorf("render: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("render: encode yaml: %w", err)
	}
	return nil
}

// recordNode builds a mapping node so field order survives encoding.
func recordNode(r protocol.Record) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if r.Len() == 0 {
		m.Style = yaml.FlowStyle
	}
	for _, f := range r.Fields() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Name}
		m.Content = append(m.Content, key, valueNode(f.Value))
	}
	return m
}

func valueNode(v protocol.Value) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode}
	switch v.Type {
	case protocol.ValueString:
		n.Tag, n.Value = "!!str", v.String
	case protocol.ValueInt:
		n.Tag, n.Value = "!!int", strconv.FormatInt(v.Int, 10)
	case protocol.ValueFloat:
		n.Tag, n.Value = "!!float", strconv.FormatFloat(v.Float, 'g', -1, 64)
	case protocol.ValueBool:
		n.Tag, n.Value = "!!bool", strconv.FormatBool(v.Bool)
	default:
		n.Tag, n.Value = "!!null", "null"
	}
	return n
}

// writeTOML writes records as an array of tables under key. TOML has no
// null, so null fields are dropped. Keys come out sorted.
func writeTOML(w io.Writer, key string, records []protocol.Record) error {
	tables := make([]map[string]any, 0, len(records))
	for _, r := range records {
		table := make(map[string]any, r.Len())
		for _, f := range r.Fields() {
			if f.Value.Type == protocol.ValueNull {
				continue
			}
			table[f.Name] = f.Value.Any()
		}
		tables = append(tables, table)
	}
	if err := toml.NewEncoder(w).Encode(map[string]any{key: tables}); err != nil {
		return fmt.Errorf("render: encode toml: %w", err)
	}
	return nil
}
