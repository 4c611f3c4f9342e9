package csp

import "testing"

func TestIntegerLiteral_NegatedInvolution(t *testing.T) {
	lit := GreaterOrEqual(IntegerVariable(4), IntegerValue(7))
	got := lit.Negated().Negated()
	if got != lit {
		t.Errorf("Negated().Negated() = %+v, want %+v", got, lit)
	}
}

func TestIntegerLiteral_NegatedMeansStrictlyLess(t *testing.T) {
	// !(v >= 7) == (v <= 6) == (NegationOf(v) >= -6).
	v := IntegerVariable(2)
	lit := GreaterOrEqual(v, IntegerValue(7))
	want := LowerOrEqual(v, IntegerValue(6))
	if got := lit.Negated(); got != want {
		t.Errorf("Negated() = %+v, want %+v", got, want)
	}
}

func TestIntegerVariable_NegationOfInvolution(t *testing.T) {
	v := IntegerVariable(10)
	if got := v.NegationOf().NegationOf(); got != v {
		t.Errorf("NegationOf().NegationOf() = %v, want %v", got, v)
	}
	if v.NegationOf() == v {
		t.Errorf("NegationOf() should differ from v")
	}
}
