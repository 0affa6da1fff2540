package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is a schema-less result row. Columns keeps the key order of the wire
// object; rows of the same result may carry different column sets.
type Row struct {
	Columns []string
	Values  map[string]any
}

// NewRow builds a row from alternating column/value pairs
func NewRow(pairs ...any) Row {
	r := Row{Values: make(map[string]any, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		col := fmt.Sprint(pairs[i])
		if _, seen := r.Values[col]; !seen {
			r.Columns = append(r.Columns, col)
		}
		r.Values[col] = pairs[i+1]
	}
	return r
}

// Get returns the value of a column and whether the row has it at all
func (r Row) Get(col string) (any, bool) {
	v, ok := r.Values[col]
	return v, ok
}

// UnmarshalJSON decodes an object keeping key order. Numbers stay json.Number.
func (r *Row) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Row{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode row: expected object, got %v", tok)
	}

	out := Row{Values: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode row key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode row: unexpected key %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode row value %q: %w", key, err)
		}
		if _, seen := out.Values[key]; !seen {
			out.Columns = append(out.Columns, key)
		}
		out.Values[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}

	*r = out
	return nil
}

// MarshalJSON encodes the row as an object in column order
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[col])
		if err != nil {
			return nil, fmt.Errorf("encode row value %q: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Table is a tabular result. A nil *Table means the service sent no data;
// a non-nil Table with no rows means it sent an empty result.
type Table struct {
	Rows []Row
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
