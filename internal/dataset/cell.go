package dataset

import (
	"math"
	"strconv"
	"strings"
)

type CellKind uint8

const (
	Missing CellKind = iota
	Integer
	Float
	Text
)

func (k CellKind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Text:
		return "text"
	default:
		return "missing"
	}
}

// Cell is a single tabular value. The zero value is a missing cell.
type Cell struct {
	kind CellKind
	i    int64
	f    float64
	s    string
}

// naTokens are read as missing values.
var naTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"#N/A": true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
}

func MissingCell() Cell {
	return Cell{}
}

func IntCell(v int64) Cell {
	return Cell{kind: Integer, i: v}
}

func FloatCell(v float64) Cell {
	if math.IsNaN(v) {
		return Cell{}
	}
	return Cell{kind: Float, f: v}
}

func TextCell(s string) Cell {
	return Cell{kind: Text, s: s}
}

// ParseCell infers the kind of a raw CSV field. Only finite numbers are numeric.
func ParseCell(raw string) Cell {
	if naTokens[strings.TrimSpace(raw)] {
		return Cell{}
	}
	trimmed := strings.TrimSpace(raw)
	if v, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return IntCell(v)
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
		return FloatCell(v)
	}
	return TextCell(raw)
}

func (c Cell) Kind() CellKind {
	return c.kind
}

func (c Cell) IsMissing() bool {
	return c.kind == Missing
}

func (c Cell) IsNumeric() bool {
	return c.kind == Integer || c.kind == Float
}

func (c Cell) Int() (int64, bool) {
	switch c.kind {
	case Integer:
		return c.i, true
	case Float:
		if c.f == math.Trunc(c.f) {
			return int64(c.f), true
		}
	}
	return 0, false
}

// Number coerces the cell to a float. Text is parsed; missing and unparsable text report false.
func (c Cell) Number() (float64, bool) {
	switch c.kind {
	case Integer:
		return float64(c.i), true
	case Float:
		return c.f, true
	case Text:
		v, err := strconv.ParseFloat(strings.TrimSpace(c.s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	default:
		return 0, false
	}
}

// String renders the cell the way it is written to CSV. Missing cells are empty.
func (c Cell) String() string {
	switch c.kind {
	case Integer:
		return strconv.FormatInt(c.i, 10)
	case Float:
		return strconv.FormatFloat(c.f, 'f', -1, 64)
	case Text:
		return c.s
	default:
		return ""
	}
}

// Value returns the cell as a plain Go value: int64, float64, string or nil.
func (c Cell) Value() interface{} {
	switch c.kind {
	case Integer:
		return c.i
	case Float:
		return c.f
	case Text:
		return c.s
	default:
		return nil
	}
}

func (c Cell) Equal(other Cell) bool {
	return c == other
}

// Matches reports whether the cell identifies the given raw key, comparing numerically
// when both sides are numbers.
func (c Cell) Matches(key string) bool {
	if c.kind == Missing {
		return false
	}
	if c.String() == key {
		return true
	}
	want, err := strconv.ParseFloat(strings.TrimSpace(key), 64)
	if err != nil {
		return false
	}
	got, ok := c.Number()
	return ok && c.IsNumeric() && got == want
}

func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case Integer:
		return strconv.AppendInt(nil, c.i, 10), nil
	case Float:
		return strconv.AppendFloat(nil, c.f, 'f', -1, 64), nil
	case Text:
		return marshalString(c.s)
	default:
		return []byte("null"), nil
	}
}
