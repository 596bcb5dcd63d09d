package domain

import (
	"bytes"
	"encoding/json"
)

// CanonicalTimeLayout is the textual form of every temporal result value.
const CanonicalTimeLayout = "2006-01-02 15:04:05"

// Row is one result row: an ordered column to value mapping. It marshals to
// a JSON object whose keys follow column order.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// MarshalJSON implements json.Marshaler.
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
		buf.Write(key)
		buf.WriteByte(':')
		var v any
		if i < len(r.Values) {
			v = r.Values[i]
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ResultSet is a fully materialized query result.
type ResultSet struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}
