package csp

import (
	"testing"

	"github.com/rhartert/lcg/sat"
)

// TestCumulative_MandatoryOverlapRaisesCapacityLowerBound models two tasks
// whose mandatory parts fully overlap and together demand more than the
// capacity's current upper bound, and checks the propagator raises the
// capacity's lower bound to the required peak instead of leaving it
// undetected (§4.8 scenario "E5").
func TestCumulative_MandatoryOverlapRaisesCapacityLowerBound(t *testing.T) {
	engine, intTrail, scheduler := newTestModel()
	capacity := intTrail.AddIntegerVariable(0, 20)
	cp := NewCumulativePropagator(engine.Trail, intTrail, scheduler, capacity)

	for i := 0; i < 2; i++ {
		start := intTrail.AddIntegerVariable(0, 0) // fixed at 0: fully mandatory
		duration := intTrail.AddIntegerVariable(5, 5)
		demand := intTrail.AddIntegerVariable(6, 6)
		cp.AddTask(CumulativeTask{Start: start, Duration: duration, Demand: demand, PresenceLit: sat.NoLiteral})
	}

	// Force a Propagate: touch the capacity bound to create a watch wakeup.
	intTrail.Enqueue(GreaterOrEqual(capacity, 1), nil, nil)
	if !scheduler.Propagate() {
		t.Fatalf("Propagate() reported a conflict")
	}

	if got := intTrail.LowerBound(capacity); got < 12 {
		t.Errorf("LowerBound(capacity) = %d, want >= 12 (two tasks demanding 6 each, fully overlapping)", got)
	}
}

// TestCumulative_OverCapacityIsInfeasible checks that a capacity whose upper
// bound cannot possibly host the mandatory peak is reported as a conflict.
func TestCumulative_OverCapacityIsInfeasible(t *testing.T) {
	engine, intTrail, scheduler := newTestModel()
	capacity := intTrail.AddIntegerVariable(0, 5) // too small
	cp := NewCumulativePropagator(engine.Trail, intTrail, scheduler, capacity)

	for i := 0; i < 2; i++ {
		start := intTrail.AddIntegerVariable(0, 0)
		duration := intTrail.AddIntegerVariable(5, 5)
		demand := intTrail.AddIntegerVariable(6, 6)
		cp.AddTask(CumulativeTask{Start: start, Duration: duration, Demand: demand, PresenceLit: sat.NoLiteral})
	}

	intTrail.Enqueue(GreaterOrEqual(capacity, 1), nil, nil)
	if scheduler.Propagate() {
		t.Fatalf("Propagate() should detect the capacity upper bound is infeasible")
	}
}

// TestCumulative_OptionalTaskReasonUsesNegatedPresenceLiteral checks that a
// present optional task contributing to an infeasible profile is explained
// by its presence literal's negation (false, since the literal is what made
// the task present and is therefore what the conflict must cite as a false
// literal), not the literal itself (§4.1/§8 property 2).
func TestCumulative_OptionalTaskReasonUsesNegatedPresenceLiteral(t *testing.T) {
	engine, intTrail, scheduler := newTestModel()
	capacity := intTrail.AddIntegerVariable(0, 5) // too small for both tasks
	cp := NewCumulativePropagator(engine.Trail, intTrail, scheduler, capacity)

	start0 := intTrail.AddIntegerVariable(0, 0)
	duration0 := intTrail.AddIntegerVariable(5, 5)
	demand0 := intTrail.AddIntegerVariable(6, 6)
	cp.AddTask(CumulativeTask{Start: start0, Duration: duration0, Demand: demand0, PresenceLit: sat.NoLiteral})

	presence := sat.PositiveLiteral(engine.AddVariable())
	start1 := intTrail.AddIntegerVariable(0, 0)
	duration1 := intTrail.AddIntegerVariable(5, 5)
	demand1 := intTrail.AddIntegerVariable(6, 6)
	cp.AddTask(CumulativeTask{Start: start1, Duration: duration1, Demand: demand1, PresenceLit: presence})

	engine.Trail.NewDecisionLevel()
	if !engine.Trail.EnqueueSearchDecision(presence) {
		t.Fatalf("EnqueueSearchDecision(presence) failed")
	}
	intTrail.Enqueue(GreaterOrEqual(capacity, 1), nil, nil)

	if scheduler.Propagate() {
		t.Fatalf("Propagate() should detect the capacity upper bound is infeasible")
	}
	if !engine.Trail.HasConflict() {
		t.Fatalf("a conflict should be latched on the Boolean trail")
	}

	var conflict []sat.Literal
	engine.Trail.ConflictLiterals(&conflict)
	want := presence.Negated()
	found := false
	for _, l := range conflict {
		if l == want {
			found = true
		}
	}
	if !found {
		t.Errorf("conflict literals = %v, want to include %v (presence.Negated())", conflict, want)
	}
}

// TestCumulative_SingleTaskNeverOverloads is a sanity check that one task
// alone never forces the capacity above its own demand.
func TestCumulative_SingleTaskNeverOverloads(t *testing.T) {
	engine, intTrail, scheduler := newTestModel()
	capacity := intTrail.AddIntegerVariable(0, 10)
	cp := NewCumulativePropagator(engine.Trail, intTrail, scheduler, capacity)

	start := intTrail.AddIntegerVariable(0, 0)
	duration := intTrail.AddIntegerVariable(3, 3)
	demand := intTrail.AddIntegerVariable(4, 4)
	cp.AddTask(CumulativeTask{Start: start, Duration: duration, Demand: demand, PresenceLit: sat.NoLiteral})

	intTrail.Enqueue(GreaterOrEqual(capacity, 1), nil, nil)
	if !scheduler.Propagate() {
		t.Fatalf("Propagate() reported a conflict")
	}
	if got := intTrail.LowerBound(capacity); got > 4 {
		t.Errorf("LowerBound(capacity) = %d, want <= 4", got)
	}
}
