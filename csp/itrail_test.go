package csp

import (
	"testing"

	"github.com/rhartert/lcg/sat"
)

func TestIntegerTrail_BoundsAfterEnqueue(t *testing.T) {
	boolTrail := sat.NewTrail()
	it := NewIntegerTrail(boolTrail)
	v := it.AddIntegerVariable(0, 10)

	if got := it.LowerBound(v); got != 0 {
		t.Errorf("LowerBound() = %d, want 0", got)
	}
	if got := it.UpperBound(v); got != 10 {
		t.Errorf("UpperBound() = %d, want 10", got)
	}

	if !it.Enqueue(GreaterOrEqual(v, 3), nil, nil) {
		t.Fatalf("Enqueue should succeed within bounds")
	}
	if got := it.LowerBound(v); got != 3 {
		t.Errorf("LowerBound() after Enqueue = %d, want 3", got)
	}
	if got := it.UpperBound(v); got != 10 {
		t.Errorf("UpperBound() should be unaffected, got %d", got)
	}
}

func TestIntegerTrail_EnqueueIsNoOpWhenNotTighter(t *testing.T) {
	boolTrail := sat.NewTrail()
	it := NewIntegerTrail(boolTrail)
	v := it.AddIntegerVariable(5, 10)

	if !it.Enqueue(GreaterOrEqual(v, 3), nil, nil) {
		t.Fatalf("Enqueue should succeed")
	}
	if got := it.LowerBound(v); got != 5 {
		t.Errorf("a weaker bound must not move LowerBound(): got %d, want 5", got)
	}
}

func TestIntegerTrail_EnqueueConflictsWhenCrossingUpperBound(t *testing.T) {
	boolTrail := sat.NewTrail()
	it := NewIntegerTrail(boolTrail)
	v := it.AddIntegerVariable(0, 5)

	if it.Enqueue(GreaterOrEqual(v, 6), nil, nil) {
		t.Fatalf("Enqueue past the upper bound of a mandatory variable should fail")
	}
	if !boolTrail.HasConflict() {
		t.Errorf("a conflict should be latched on the Boolean trail")
	}
}

func TestIntegerTrail_OptionalVariableBecomesAbsentInsteadOfConflicting(t *testing.T) {
	boolTrail := sat.NewTrail()
	it := NewIntegerTrail(boolTrail)
	v := it.AddIntegerVariable(0, 5)
	presence := sat.PositiveLiteral(boolTrail.AddVariable())
	it.MarkIntegerVariableAsOptional(v, presence)

	if !it.Enqueue(GreaterOrEqual(v, 6), nil, nil) {
		t.Fatalf("an optional variable crossing its bound should not conflict")
	}
	if boolTrail.LitValue(presence) != sat.False {
		t.Errorf("presence literal should have been propagated false")
	}
}

func TestIntegerTrail_UntrailRestoresPriorBound(t *testing.T) {
	boolTrail := sat.NewTrail()
	it := NewIntegerTrail(boolTrail)
	v := it.AddIntegerVariable(0, 10)

	boolTrail.NewDecisionLevel()
	it.NewDecisionLevel()
	it.Enqueue(GreaterOrEqual(v, 7), nil, nil)

	if got := it.LowerBound(v); got != 7 {
		t.Fatalf("LowerBound() = %d, want 7", got)
	}

	boolTrail.Untrail(0)
	it.Untrail(0)

	if got := it.LowerBound(v); got != 0 {
		t.Errorf("LowerBound() after Untrail = %d, want 0", got)
	}
}

func TestIntegerTrail_DrainModifiedReportsChangedVariablesOnce(t *testing.T) {
	boolTrail := sat.NewTrail()
	it := NewIntegerTrail(boolTrail)
	v := it.AddIntegerVariable(0, 10)

	it.Enqueue(GreaterOrEqual(v, 2), nil, nil)
	modified := it.DrainModified()
	if len(modified) != 1 || modified[0] != v {
		t.Errorf("DrainModified() = %v, want [%v]", modified, v)
	}
	if again := it.DrainModified(); len(again) != 0 {
		t.Errorf("second DrainModified() = %v, want empty", again)
	}
}

func TestIntegerTrail_MergeReasonIntoExpandsBoundReason(t *testing.T) {
	boolTrail := sat.NewTrail()
	it := NewIntegerTrail(boolTrail)
	v := it.AddIntegerVariable(0, 10)
	w := it.AddIntegerVariable(0, 10)

	presenceV := sat.PositiveLiteral(boolTrail.AddVariable())
	// Root-level bounds need no explanation, so tighten above the root.
	boolTrail.NewDecisionLevel()
	it.NewDecisionLevel()
	it.Enqueue(GreaterOrEqual(v, 4), []sat.Literal{presenceV}, nil)
	it.Enqueue(GreaterOrEqual(w, 2), nil, []IntegerLiteral{GreaterOrEqual(v, 4)})

	// w's bound now depends on v's bound via a boundReason; MergeReasonInto
	// should pull in presenceV transitively.
	out := it.MergeReasonInto([]IntegerLiteral{GreaterOrEqual(w, 2)}, nil)
	found := false
	for _, l := range out {
		if l == presenceV {
			found = true
		}
	}
	if !found {
		t.Errorf("MergeReasonInto(%v) = %v, want to include %v", w, out, presenceV)
	}
}
