package vm

import "testing"

func TestValueKinds(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		kind Kind
	}{
		{"empty", Empty, KindEmpty},
		{"integer", IntegerValue(42), KindInteger},
		{"float", FloatValue(3.5), KindFloat},
		{"bool", BoolValue(true), KindBool},
		{"object", ObjectValue(&StringObject{Bytes: []byte("hi")}), KindObject},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.v.Kind() != c.kind {
				t.Errorf("Kind() = %v, want %v", c.v.Kind(), c.kind)
			}
		})
	}
}

func TestValueTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"zero int", IntegerValue(0), false},
		{"nonzero int", IntegerValue(1), true},
		{"zero float", FloatValue(0), false},
		{"nonzero float", FloatValue(0.1), true},
		{"false", BoolValue(false), false},
		{"true", BoolValue(true), true},
		{"empty", Empty, true},
		{"object", ObjectValue(&StringObject{}), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.Truthy(); got != c.want {
				t.Errorf("Truthy() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestValueObjectNilOnNonObject(t *testing.T) {
	if IntegerValue(1).Object() != nil {
		t.Fatalf("Object() on an Integer Value should be nil")
	}
}

func TestValueString(t *testing.T) {
	if got := IntegerValue(7).String(); got != "7" {
		t.Errorf("IntegerValue(7).String() = %q", got)
	}
	if got := BoolValue(true).String(); got != "true" {
		t.Errorf("BoolValue(true).String() = %q", got)
	}
	if got := Empty.String(); got != "_" {
		t.Errorf("Empty.String() = %q", got)
	}
}
