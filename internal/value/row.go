package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one decoded result row. Column order follows the statement's
// result columns; a duplicated column name resolves to its last occurrence
// in Get and Map.
type Row struct {
	columns []string
	values  []Value
}

// NewRow pairs column names with values. It panics if the lengths differ.
func NewRow(columns []string, values []Value) Row {
	if len(columns) != len(values) {
		panic(fmt.Sprintf("value: row has %d columns but %d values", len(columns), len(values)))
	}
	return Row{columns: columns, values: values}
}

// DecodeRow decodes raw column values with d.
func (d Decoder) DecodeRow(columns []string, raw []any) Row {
	vals := make([]Value, len(raw))
	for i, r := range raw {
		vals[i] = d.Decode(r)
	}
	return NewRow(columns, vals)
}

// Columns returns the column names in result order.
func (r Row) Columns() []string { return r.columns }

// Values returns the values in result order.
func (r Row) Values() []Value { return r.values }

// Len returns the number of columns.
func (r Row) Len() int { return len(r.values) }

// Get returns the value of the named column.
func (r Row) Get(name string) (Value, bool) {
	for i := len(r.columns) - 1; i >= 0; i-- {
		if r.columns[i] == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// Map returns the row keyed by column name.
func (r Row) Map() map[string]Value {
	m := make(map[string]Value, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i]
	}
	return m
}

// MarshalJSON emits the row as an object with keys in result-column order.
// Duplicate names are emitted once, with the last value.
func (r Row) MarshalJSON() ([]byte, error) {
	last := make(map[string]int, len(r.columns))
	for i, c := range r.columns {
		last[c] = i
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for i, c := range r.columns {
		if last[c] != i {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
