package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValueKind tags which alternative a Value currently holds.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

// Value is a dynamically-typed JSON value: the sum of null, bool, integer,
// double, string, array-of-Value, and object-of-Value. Encoders built on top
// of Value round-trip the integer/double distinction, which a plain
// map[string]interface{} decode (float64-for-everything) loses.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	obj  map[string]Value
	keys []string // preserves object key insertion order for encoding
}

func NullValue() Value             { return Value{kind: KindNull} }
func BoolValue(b bool) Value       { return Value{kind: KindBool, b: b} }
func IntValue(i int64) Value       { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value   { return Value{kind: KindFloat, f: f} }
func StringValue(s string) Value   { return Value{kind: KindString, s: s} }
func ArrayValue(v []Value) Value   { return Value{kind: KindArray, arr: v} }

// ObjectValue builds an object Value, preserving the given key order.
func ObjectValue(pairs ...KV) Value {
	obj := make(map[string]Value, len(pairs))
	keys := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		if _, exists := obj[kv.Key]; !exists {
			keys = append(keys, kv.Key)
		}
		obj[kv.Key] = kv.Value
	}
	return Value{kind: KindObject, obj: obj, keys: keys}
}

// KV is a single object member, used to build ObjectValue literals in order.
type KV struct {
	Key   string
	Value Value
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

func (v Value) String() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) Array() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// Field looks up an object member by key; returns the null Value and false
// if v is not an object or the key is absent.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	val, ok := v.obj[key]
	return val, ok
}

// Keys returns the object's member names in insertion order. Empty for
// non-objects.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// MarshalJSON implements canonical encoding, preserving int/float distinction
// and object key order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case KindInt:
		return []byte(fmt.Sprintf("%d", v.i)), nil
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := elem.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.obj[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("mcp: unknown value kind %d", v.kind)
	}
}

// UnmarshalJSON decodes into Value, using json.Number to distinguish
// integers from doubles without losing precision.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = fromInterface(raw)
	return nil
}

func fromInterface(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return NullValue()
	case bool:
		return BoolValue(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntValue(i)
		}
		f, _ := t.Float64()
		return FloatValue(f)
	case string:
		return StringValue(t)
	case []interface{}:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = fromInterface(e)
		}
		return ArrayValue(out)
	case map[string]interface{}:
		// json.Decoder does not preserve key order for map[string]interface{};
		// keys are recorded in map iteration order, so the key order of a
		// decoded object is not defined.
		obj := make(map[string]Value, len(t))
		keys := make([]string, 0, len(t))
		for k, e := range t {
			obj[k] = fromInterface(e)
			keys = append(keys, k)
		}
		return Value{kind: KindObject, obj: obj, keys: keys}
	default:
		return NullValue()
	}
}
