package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

// Value kinds. The zero Kind marks an empty Value.
const (
	KindNumber Kind = iota + 1
	KindBool
	KindString
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// Value is a telemetry field value: exactly one of number, bool or string.
type Value struct {
	kind Kind
	num  float64
	b    bool
	str  string
}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Kind reports the variant held.
func (v Value) Kind() Kind { return v.kind }

// Float returns the number and whether v is a number.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the bool and whether v is a bool.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Text returns the string and whether v is a string.
func (v Value) Text() (string, bool) { return v.str, v.kind == KindString }

// Any returns the native Go value for writers that take interface{} fields.
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindString:
		return v.str
	default:
		return nil
	}
}

// String renders v for logs.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.str
	default:
		return "<invalid>"
	}
}

// MarshalJSON encodes v as the matching JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindString:
		return json.Marshal(v.str)
	default:
		return nil, fmt.Errorf("telemetry: marshal empty value")
	}
}

// decodeValue classifies one raw JSON token by its first byte.
//
// Numbers become float64 and booleans stay booleans. Strings are unquoted.
// Everything else (objects, arrays, null, numbers outside float64 range) is
// kept as its compact JSON text.
func decodeValue(raw json.RawMessage) Value {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return String("")
	}

	switch c := raw[0]; {
	case c == 't' && bytes.Equal(raw, []byte("true")):
		return Bool(true)
	case c == 'f' && bytes.Equal(raw, []byte("false")):
		return Bool(false)
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return String(s)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return Number(f)
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return String(buf.String())
	}
	return String(string(raw))
}
