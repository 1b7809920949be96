// Package macro implements the Macro AST & Parser (spec §4.2), the
// process-wide Variable store (§4.4), and the cooperative Macro Runtime
// (§4.3).
//
// Grounded on original_source/tests/unit/test_macros.py for exact
// behavior (argument coercion, if_tap/if_single timing, hold_keys
// atomicity, repeat, set/add semantics), reimplemented idiomatically rather
// than transliterated.
package macro

import "fmt"

// Kind tags the dynamic type a macro Value currently holds (spec §9: model
// as a tagged variant { Null | Int | Float | Str }).
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is the tagged variant a macro Variable resolves to.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
}

// NullValue returns the absent/unset value.
func NullValue() Value { return Value{Kind: KindNull} }

// IntValue wraps an integer.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// FloatValue wraps a float.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// AsFloat returns the value as a float64 if it is numeric (int or float).
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	}
	return 0, false
}

// AsInt returns the value as an int64 only if it is exactly an int — no
// float->int coercion, matching spec §4.2's "no coercion except int→float".
func (v Value) AsInt() (int64, bool) {
	if v.Kind == KindInt {
		return v.Int, true
	}
	return 0, false
}

// Equal implements the strict, uncoerced equality if_eq/ifeq require: types
// must match exactly (int 1 does not equal string "1", an unset variable
// equals another unset variable).
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindString:
		return v.Str == other.Str
	default:
		return false
	}
}

// String renders a Value for logging.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return fmt.Sprintf("%q", v.Str)
	default:
		return "?"
	}
}
