package models

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// ValueKind identifies which member of a Value is populated.
type ValueKind string

const (
	ValueNull   ValueKind = "null"
	ValueInt    ValueKind = "int"
	ValueUint   ValueKind = "uint"
	ValueFloat  ValueKind = "float"
	ValueString ValueKind = "string"
	ValueBytes  ValueKind = "bytes"
	ValueBool   ValueKind = "bool"
)

// Value is a measured value or a table index. Exactly one member matching Kind
// is set, which keeps int64, uint64, float64, string and byte values distinct
// across JSON and msgpack encodings. The zero Value is null.
type Value struct {
	Kind  ValueKind `json:"kind" msgpack:"kind"`
	Int   int64     `json:"int,omitempty" msgpack:"int,omitempty"`
	Uint  uint64    `json:"uint,omitempty" msgpack:"uint,omitempty"`
	Float float64   `json:"float,omitempty" msgpack:"float,omitempty"`
	Str   string    `json:"str,omitempty" msgpack:"str,omitempty"`
	Bytes []byte    `json:"bytes,omitempty" msgpack:"bytes,omitempty"`
	Bool  bool      `json:"bool,omitempty" msgpack:"bool,omitempty"`
}

func NullValue() Value { return Value{Kind: ValueNull} }
func IntValue(v int64) Value { return Value{Kind: ValueInt, Int: v} }
func UintValue(v uint64) Value { return Value{Kind: ValueUint, Uint: v} }
func FloatValue(v float64) Value { return Value{Kind: ValueFloat, Float: v} }
func BoolValue(v bool) Value { return Value{Kind: ValueBool, Bool: v} }

// StringValue stores v as a string when it is valid UTF-8 and as bytes
// otherwise, so every string Value survives text encodings such as JSON.
func StringValue(v string) Value {
	if !utf8.ValidString(v) {
		return BytesValue([]byte(v))
	}
	return Value{Kind: ValueString, Str: v}
}

// BytesValue copies b. An empty slice is stored as nil.
func BytesValue(b []byte) Value {
	v := Value{Kind: ValueBytes}
	if len(b) > 0 {
		v.Bytes = append([]byte(nil), b...)
	}
	return v
}

// ValueOf wraps a native Go value as produced by the SNMP decoder.
// Unsupported types are formatted with %v and stored as a string.
func ValueOf(x interface{}) Value {
	switch v := x.(type) {
	case nil:
		return NullValue()
	case Value:
		return v
	case int:
		return IntValue(int64(v))
	case int32:
		return IntValue(int64(v))
	case int64:
		return IntValue(v)
	case uint:
		return UintValue(uint64(v))
	case uint32:
		return UintValue(uint64(v))
	case uint64:
		return UintValue(v)
	case float32:
		return FloatValue(float64(v))
	case float64:
		return FloatValue(v)
	case string:
		return StringValue(v)
	case []byte:
		return BytesValue(v)
	case bool:
		return BoolValue(v)
	default:
		return StringValue(fmt.Sprintf("%v", v))
	}
}

// IsNull reports whether v carries no value.
func (v Value) IsNull() bool {
	return v.Kind == "" || v.Kind == ValueNull
}

// Interface returns the native Go value held by v.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case ValueInt:
		return v.Int
	case ValueUint:
		return v.Uint
	case ValueFloat:
		return v.Float
	case ValueString:
		return v.Str
	case ValueBytes:
		return v.Bytes
	case ValueBool:
		return v.Bool
	default:
		return nil
	}
}

// Float64 returns v as a float for numeric kinds.
func (v Value) Float64() (float64, bool) {
	switch v.Kind {
	case ValueInt:
		return float64(v.Int), true
	case ValueUint:
		return float64(v.Uint), true
	case ValueFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueUint:
		return strconv.FormatUint(v.Uint, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueString:
		return v.Str
	case ValueBytes:
		return hex.EncodeToString(v.Bytes)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return "null"
	}
}
