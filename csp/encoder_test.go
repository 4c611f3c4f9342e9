package csp

import (
	"testing"

	"github.com/rhartert/lcg/sat"
)

func newTestEncoder() (*sat.Engine, *IntegerTrail, *IntegerEncoder) {
	engine := sat.NewEngine(0.999)
	intTrail := NewIntegerTrail(engine.Trail)
	encoder := NewIntegerEncoder(engine, intTrail)
	intTrail.SetEncoder(encoder)
	return engine, intTrail, encoder
}

func TestEncoder_GetOrCreateAssociatedLiteralIsStable(t *testing.T) {
	_, intTrail, encoder := newTestEncoder()
	v := intTrail.AddIntegerVariable(0, 10)

	l1 := encoder.GetOrCreateAssociatedLiteral(GreaterOrEqual(v, 4))
	l2 := encoder.GetOrCreateAssociatedLiteral(GreaterOrEqual(v, 4))
	if l1 != l2 {
		t.Errorf("GetOrCreateAssociatedLiteral called twice with the same bound returned different literals: %v != %v", l1, l2)
	}
}

func TestEncoder_OrderImplicationsAreEnforced(t *testing.T) {
	engine, _, encoder := newTestEncoder()
	v := IntegerVariable(0)
	_ = encoder.intTrail.AddIntegerVariable(0, 10) // allocates v and NegationOf(v)

	weak := encoder.GetOrCreateAssociatedLiteral(GreaterOrEqual(v, 3))
	strong := encoder.GetOrCreateAssociatedLiteral(GreaterOrEqual(v, 7))

	// (v >= 7) should imply (v >= 3): asserting `strong` must force `weak`.
	engine.Trail.NewDecisionLevel()
	if !engine.Trail.EnqueueSearchDecision(strong) {
		t.Fatalf("decision rejected")
	}
	if !engine.Propagate() {
		t.Fatalf("propagation reported a conflict")
	}
	if got := engine.Trail.LitValue(weak); got != sat.True {
		t.Errorf("weak bound literal = %v, want true", got)
	}
}

func TestEncoder_SearchForLiteralAtOrBeforeFindsGreatestBoundNotAbove(t *testing.T) {
	_, intTrail, encoder := newTestEncoder()
	v := intTrail.AddIntegerVariable(0, 10)

	l3 := encoder.GetOrCreateAssociatedLiteral(GreaterOrEqual(v, 3))
	encoder.GetOrCreateAssociatedLiteral(GreaterOrEqual(v, 8))

	got, ok := encoder.SearchForLiteralAtOrBefore(GreaterOrEqual(v, 5))
	if !ok {
		t.Fatalf("SearchForLiteralAtOrBefore(5) should find bound 3")
	}
	if got != l3 {
		t.Errorf("SearchForLiteralAtOrBefore(5) = %v, want the literal for bound 3 (%v)", got, l3)
	}
}

func TestEncoder_FullyEncodeVariableExactlyOneValueHolds(t *testing.T) {
	engine, intTrail, encoder := newTestEncoder()
	v := intTrail.AddIntegerVariable(0, 3)
	encoder.FullyEncodeVariable(v, []IntegerValue{0, 1, 2, 3})

	values := encoder.ValuesOf(v)
	if len(values) != 4 {
		t.Fatalf("ValuesOf(v) has %d entries, want 4", len(values))
	}

	// Force value 2: every other value literal should be propagated false.
	engine.Trail.NewDecisionLevel()
	if !engine.Trail.EnqueueSearchDecision(values[2].lit) {
		t.Fatalf("decision rejected")
	}
	if !engine.Propagate() {
		t.Fatalf("propagation reported a conflict")
	}
	for i, vl := range values {
		want := sat.False
		if i == 2 {
			want = sat.True
		}
		if got := engine.Trail.LitValue(vl.lit); got != want {
			t.Errorf("value %d literal = %v, want %v", vl.value, got, want)
		}
	}
}
