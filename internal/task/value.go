package task

import (
	"fmt"
	"strconv"
	"time"
)

// Value is a typed annotation cell. A null Value carries only its kind.
type Value struct {
	Kind  Kind
	Null  bool
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Time  time.Time
}

// NullValue returns a typed null.
func NullValue(k Kind) Value { return Value{Kind: k, Null: true} }

// StringValue holds text for str, regex and category cells.
func StringValue(k Kind, s string) Value { return Value{Kind: k, Str: s} }

func IntValue(n int64) Value { return Value{Kind: KindInt, Int: n} }
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// Interface returns the Go value of the cell, nil when null.
func (v Value) Interface() any {
	if v.Null {
		return nil
	}
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindBool:
		return v.Bool
	case KindDate:
		return v.Time
	default:
		return v.Str
	}
}

// Format renders the cell for tabular export. Nulls render as "".
func (v Value) Format() string {
	if v.Null {
		return ""
	}
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindDate:
		return v.Time.Format(time.RFC3339)
	default:
		return v.Str
	}
}

func (v Value) String() string {
	if v.Null {
		return "<null>"
	}
	return v.Format()
}

// Equal compares kind, nullness and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Null != o.Null {
		return false
	}
	if v.Null {
		return true
	}
	switch v.Kind {
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindBool:
		return v.Bool == o.Bool
	case KindDate:
		return v.Time.Equal(o.Time)
	default:
		return v.Str == o.Str
	}
}

// ParseCell reverses Format for a cell of kind k. Empty text is null.
func ParseCell(k Kind, s string) (Value, error) {
	if s == "" {
		return NullValue(k), nil
	}
	switch k {
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse int cell %q: %w", s, err)
		}
		return IntValue(n), nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse float cell %q: %w", s, err)
		}
		return FloatValue(f), nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool cell %q: %w", s, err)
		}
		return BoolValue(b), nil
	case KindDate:
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return Value{}, fmt.Errorf("parse date cell %q: %w", s, err)
		}
		return DateValue(t), nil
	default:
		return StringValue(k, s), nil
	}
}
