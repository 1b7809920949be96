package macro

import "testing"

func TestValueEqualStrictTypes(t *testing.T) {
	// Invariant I5 / spec §4.4: if_eq never coerces. int 1 must not equal
	// string "1", matching test_macros.py's TestIfEq.
	if IntValue(1).Equal(StringValue("1")) {
		t.Fatalf("expected int 1 and string \"1\" to compare unequal")
	}
	if !NullValue().Equal(NullValue()) {
		t.Fatalf("expected two unset/null values to compare equal")
	}
	if !IntValue(2).Equal(IntValue(2)) {
		t.Fatalf("expected equal ints to compare equal")
	}
	if IntValue(2).Equal(FloatValue(2)) {
		t.Fatalf("expected int and float to compare unequal even with the same magnitude")
	}
}

func TestValueAsFloatCoercion(t *testing.T) {
	f, ok := IntValue(3).AsFloat()
	if !ok || f != 3 {
		t.Fatalf("expected int->float coercion to succeed, got %v %v", f, ok)
	}
	if _, ok := StringValue("x").AsFloat(); ok {
		t.Fatalf("expected string to not be numeric")
	}
}

func TestValueAsIntNoFloatCoercion(t *testing.T) {
	if _, ok := FloatValue(3.0).AsInt(); ok {
		t.Fatalf("expected float->int to never coerce")
	}
	i, ok := IntValue(3).AsInt()
	if !ok || i != 3 {
		t.Fatalf("expected exact int to resolve")
	}
}
