package vm

import "fmt"

// Kind discriminates the variant held by a Value.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindInteger
	KindFloat
	KindBool
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "Empty"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindObject:
		return "Object"
	default:
		return "?"
	}
}

// Value is a tagged union over five disjoint variants: Empty, Integer,
// Float, Bool, and Object. Exactly one field is meaningful for a given
// Kind. Values are small, trivially copyable, and passed by value
// throughout the interpreter.
//
// Object is a non-owning reference: the lifetime of the referenced
// HeapObject is managed entirely by the GC (gc.go), not by this Value.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	obj  HeapObject
}

// Empty is the unit/placeholder sentinel value. It renders as "_" and
// is always truthy. It also acts as a wildcard in equality and ordering
// comparisons (see equal and the LT/LTE/GT/GTE cases in interpreter.go);
// this is load-bearing for
// the language's pattern-match construct.
var Empty = Value{kind: KindEmpty}

// IntegerValue constructs a signed 64-bit Integer value.
func IntegerValue(i int64) Value { return Value{kind: KindInteger, i: i} }

// FloatValue constructs a 64-bit Float value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// BoolValue constructs a Bool value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// ObjectValue constructs an Object value referencing obj.
func ObjectValue(obj HeapObject) Value { return Value{kind: KindObject, obj: obj} }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether v is the Empty sentinel.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// IsInteger reports whether v holds an Integer.
func (v Value) IsInteger() bool { return v.kind == KindInteger }

// IsFloat reports whether v holds a Float.
func (v Value) IsFloat() bool { return v.kind == KindFloat }

// IsBool reports whether v holds a Bool.
func (v Value) IsBool() bool { return v.kind == KindBool }

// IsObject reports whether v holds an Object reference.
func (v Value) IsObject() bool { return v.kind == KindObject }

// Int returns the Integer payload. Callers must check IsInteger first;
// use in contexts where the kind has already been validated (arithmetic
// dispatch, decode paths) rather than as a general-purpose accessor.
func (v Value) Int() int64 { return v.i }

// Float returns the Float payload.
func (v Value) Float() float64 { return v.f }

// Bool returns the Bool payload.
func (v Value) Bool() bool { return v.b }

// Object returns the Object payload, or nil if v is not an Object.
func (v Value) Object() HeapObject {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Truthy implements spec §4.1: false only for Integer 0, Float 0.0, or
// Bool false; true for everything else, including Empty and all objects.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindInteger:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindBool:
		return v.b
	default:
		return true
	}
}

// String renders v the way the language's `to_string` would: Strings
// and Atoms render as their bytes, Lists as "[e1, e2, …]", Tables as
// "{k1: v1, …}", Tuples as "<e1, e2, …>", and Functions/Closures as
// "<function NAME>" or "<function @0xADDR>" when unnamed.
func (v Value) String() string {
	return v.render(false)
}

// DebugString renders v like String, except String values are wrapped
// in single quotes, and any nested String inside a collection is also
// rendered in debug form.
func (v Value) DebugString() string {
	return v.render(true)
}

func (v Value) render(debug bool) string {
	switch v.kind {
	case KindEmpty:
		return "_"
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindObject:
		if v.obj == nil {
			return "_"
		}
		return v.obj.render(debug)
	default:
		return "?"
	}
}
