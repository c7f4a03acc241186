package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ValueType is the scalar type held by a Value.
type ValueType uint8

const (
	ValueNull ValueType = iota
	ValueString
	ValueInt
	ValueFloat
	ValueBool
)

func (t ValueType) String() string {
	switch t {
	case ValueNull:
		return "null"
	case ValueString:
		return "string"
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a decoded field value.
type Value struct {
	Type   ValueType
	String string
	Int    int64
	Float  float64
	Bool   bool
}

func StringValue(v string) Value { return Value{Type: ValueString, String: v} }
func IntValue(v int64) Value     { return Value{Type: ValueInt, Int: v} }
func FloatValue(v float64) Value { return Value{Type: ValueFloat, Float: v} }
func BoolValue(v bool) Value     { return Value{Type: ValueBool, Bool: v} }
func NullValue() Value           { return Value{} }

// Any returns the value as a plain Go scalar (nil for null).
func (v Value) Any() any {
	switch v.Type {
	case ValueString:
		return v.String
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueBool:
		return v.Bool
	default:
		return nil
	}
}

// Text renders the value for display. Null renders as the empty string.
func (v Value) Text() string {
	switch v.Type {
	case ValueString:
		return v.String
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// Truthy follows the usual scripting notion of truth for scalars.
func (v Value) Truthy() bool {
	switch v.Type {
	case ValueString:
		return v.String != ""
	case ValueInt:
		return v.Int != 0
	case ValueFloat:
		return v.Float != 0
	case ValueBool:
		return v.Bool
	default:
		return false
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// Field is one named value of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered, open-ended mapping of field name to scalar value.
// The zero value is an empty record ready for use. Records are values:
// Set and Delete never change a copy the record was made from.
type Record struct {
	fields []Field
	index  map[string]int
}

// NewRecord builds a record from fields, in order. Later duplicates replace
// earlier values in place.
func NewRecord(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.set(f.Name, f.Value)
	}
	return r
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// Keys returns field names in arrival order.
func (r Record) Keys() []string {
	out := make([]string, 0, len(r.fields))
	for _, f := range r.fields {
		out = append(out, f.Name)
	}
	return out
}

// Fields returns a copy of the ordered fields.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Get returns the value of name and whether it is present.
func (r Record) Get(name string) (Value, bool) {
	i, ok := r.index[name]
	if !ok {
		return Value{}, false
	}
	return r.fields[i].Value, true
}

// Set replaces the value of name in place, or appends it as the last field.
func (r *Record) Set(name string, v Value) {
	r.detach()
	r.set(name, v)
}

// Delete removes name, keeping the order of the remaining fields.
func (r *Record) Delete(name string) {
	if _, ok := r.index[name]; !ok {
		return
	}
	r.detach()
	i := r.index[name]
	r.fields = append(r.fields[:i], r.fields[i+1:]...)
	delete(r.index, name)
	for j := i; j < len(r.fields); j++ {
		r.index[r.fields[j].Name] = j
	}
}

// detach gives r its own storage so that records sharing fields and index
// through a plain copy stay unaffected.
func (r *Record) detach() {
	fields := make([]Field, len(r.fields), len(r.fields)+1)
	copy(fields, r.fields)
	index := make(map[string]int, len(r.index)+1)
	for k, v := range r.index {
		index[k] = v
	}
	r.fields, r.index = fields, index
}

// set mutates r without detaching; only for records the caller built.
func (r *Record) set(name string, v Value) {
	if i, ok := r.index[name]; ok {
		r.fields[i].Value = v
		return
	}
	if r.index == nil {
		r.index = make(map[string]int)
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, Field{Name: name, Value: v})
}

// MarshalJSON writes the record as a JSON object preserving field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
