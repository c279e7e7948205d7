package dataset

import (
	"bytes"
	"encoding/json"
)

// Record is one row paired with its column names. Columns is shared with the owning
// dataset and must not be modified.
type Record struct {
	Columns []string
	Cells   []Cell
}

func (r Record) Get(column string) (Cell, bool) {
	for i, name := range r.Columns {
		if name == column {
			return r.Cells[i], true
		}
	}
	return Cell{}, false
}

// MarshalJSON writes the record as an object with keys in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalString(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.Cells[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalString(s string) ([]byte, error) {
	return json.Marshal(s)
}
