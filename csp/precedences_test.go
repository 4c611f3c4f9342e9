package csp

import (
	"testing"

	"github.com/rhartert/lcg/sat"
)

func newTestModel() (*sat.Engine, *IntegerTrail, *Scheduler) {
	engine := sat.NewEngine(0.999)
	intTrail := NewIntegerTrail(engine.Trail)
	scheduler := NewScheduler(engine, intTrail)
	return engine, intTrail, scheduler
}

// TestPrecedences_TightensHeadAcrossChain models a simple task chain
// start0 + 3 <= start1, start1 + 2 <= start2 and verifies that tightening
// start0's lower bound ripples all the way to start2 (§4.7 scenario "E3").
func TestPrecedences_TightensHeadAcrossChain(t *testing.T) {
	_, intTrail, scheduler := newTestModel()
	p := NewPrecedencesPropagator(scheduler.engine.Trail, intTrail, scheduler)

	start0 := intTrail.AddIntegerVariable(0, 100)
	start1 := intTrail.AddIntegerVariable(0, 100)
	start2 := intTrail.AddIntegerVariable(0, 100)

	p.AddPrecedenceWithOffset(start0, start1, 3)
	p.AddPrecedenceWithOffset(start1, start2, 2)

	if !intTrail.Enqueue(GreaterOrEqual(start0, 10), nil, nil) {
		t.Fatalf("Enqueue on start0 failed")
	}
	if !scheduler.Propagate() {
		t.Fatalf("Propagate() reported a conflict")
	}

	if got := intTrail.LowerBound(start1); got < 13 {
		t.Errorf("LowerBound(start1) = %d, want >= 13", got)
	}
	if got := intTrail.LowerBound(start2); got < 15 {
		t.Errorf("LowerBound(start2) = %d, want >= 15", got)
	}
}

// TestPrecedences_PositiveCycleIsInfeasible models A+1<=B, B+1<=C, C+1<=A, a
// cycle with strictly positive total offset, and expects Propagate to report
// unsatisfiability rather than loop forever (§4.7 scenario "E4").
func TestPrecedences_PositiveCycleIsInfeasible(t *testing.T) {
	_, intTrail, scheduler := newTestModel()
	p := NewPrecedencesPropagator(scheduler.engine.Trail, intTrail, scheduler)

	a := intTrail.AddIntegerVariable(0, 1000)
	b := intTrail.AddIntegerVariable(0, 1000)
	c := intTrail.AddIntegerVariable(0, 1000)

	p.AddPrecedenceWithOffset(a, b, 1)
	p.AddPrecedenceWithOffset(b, c, 1)
	p.AddPrecedenceWithOffset(c, a, 1)

	// Nudge the cycle so Propagate actually runs a relaxation pass.
	intTrail.Enqueue(GreaterOrEqual(a, 1), nil, nil)

	if scheduler.Propagate() {
		t.Fatalf("Propagate() should detect the positive cycle as infeasible")
	}
	if !scheduler.engine.Trail.HasConflict() {
		t.Errorf("a conflict should be latched on the Boolean trail")
	}
}

// TestPrecedences_BacktrackInvalidatesParentArc checks that a parent-arc
// entry recorded while deriving a bound is cleared once that bound is
// rolled back, even though the arc that set it is unconditional (no
// presence literal is popped). A stale parentArc after backtrack can make a
// later disassembleReentersTail walk through a dangling chain left by a
// discarded search branch.
func TestPrecedences_BacktrackInvalidatesParentArc(t *testing.T) {
	engine, intTrail, scheduler := newTestModel()
	p := NewPrecedencesPropagator(engine.Trail, intTrail, scheduler)

	a := intTrail.AddIntegerVariable(0, 100)
	b := intTrail.AddIntegerVariable(0, 100)
	p.AddPrecedenceWithOffset(a, b, 3)

	scheduler.NewDecisionLevel(sat.PositiveLiteral(engine.AddVariable()))
	if !intTrail.Enqueue(GreaterOrEqual(a, 10), nil, nil) {
		t.Fatalf("Enqueue failed")
	}
	if !scheduler.Propagate() {
		t.Fatalf("Propagate() reported a conflict")
	}
	if p.parentArc[b] < 0 {
		t.Fatalf("parentArc[b] should be set to the arc that derived its bound")
	}

	scheduler.Backtrack(0)

	if got := intTrail.LowerBound(b); got != 0 {
		t.Errorf("LowerBound(b) after backtrack = %d, want 0", got)
	}
	if p.parentArc[b] >= 0 {
		t.Errorf("parentArc[b] = %d after backtrack, want -1 (stale derivation not invalidated)", p.parentArc[b])
	}
}

// TestPrecedences_OptionalArcPrunedWhenInfeasible checks that a presence-
// gated arc that can no longer possibly fit has its presence literal
// propagated false (§4.7 step 4).
func TestPrecedences_OptionalArcPrunedWhenInfeasible(t *testing.T) {
	engine, intTrail, scheduler := newTestModel()
	p := NewPrecedencesPropagator(engine.Trail, intTrail, scheduler)

	tail := intTrail.AddIntegerVariable(0, 100)
	head := intTrail.AddIntegerVariable(0, 5)
	presence := sat.PositiveLiteral(engine.AddVariable())

	p.AddArc(ArcInfo{Tail: tail, Head: head, Offset: 10, OffsetVar: NoIntegerVariable, PresenceLit: presence})

	if !intTrail.Enqueue(GreaterOrEqual(tail, 1), nil, nil) {
		t.Fatalf("Enqueue failed")
	}
	if !scheduler.Propagate() {
		t.Fatalf("Propagate() reported a conflict")
	}

	if got := engine.Trail.LitValue(presence); got != sat.False {
		t.Errorf("presence literal = %v, want false (tail+10 cannot fit under head's bound 5)", got)
	}
}
