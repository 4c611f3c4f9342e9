package sat

import "testing"

// newEngineN returns an engine with n fresh Boolean variables.
func newEngineN(n int) *Engine {
	e := NewEngine(0.999)
	for i := 0; i < n; i++ {
		e.AddVariable()
	}
	return e
}

func TestEngine_UnitPropagationThroughBinaryAndClause(t *testing.T) {
	e := newEngineN(3)

	// (x0 v x1) and (!x1 v x2): asserting !x0 should force x1, then x2.
	if !e.AddClause([]Literal{PositiveLiteral(0), PositiveLiteral(1)}) {
		t.Fatalf("AddClause #1 failed")
	}
	if !e.AddClause([]Literal{NegativeLiteral(1), PositiveLiteral(2)}) {
		t.Fatalf("AddClause #2 failed")
	}

	e.Trail.NewDecisionLevel()
	if !e.Trail.EnqueueSearchDecision(NegativeLiteral(0)) {
		t.Fatalf("decision rejected")
	}
	if !e.Propagate() {
		t.Fatalf("expected propagation to succeed")
	}

	if got := e.Trail.LitValue(PositiveLiteral(1)); got != True {
		t.Errorf("x1 = %v, want true", got)
	}
	if got := e.Trail.LitValue(PositiveLiteral(2)); got != True {
		t.Errorf("x2 = %v, want true", got)
	}
}

func TestEngine_PropagateDetectsConflict(t *testing.T) {
	e := newEngineN(2)
	if !e.AddClause([]Literal{PositiveLiteral(0), PositiveLiteral(1)}) {
		t.Fatalf("AddClause failed")
	}

	e.Trail.NewDecisionLevel()
	e.Trail.EnqueueSearchDecision(NegativeLiteral(0))
	e.Trail.NewDecisionLevel()
	e.Trail.EnqueueSearchDecision(NegativeLiteral(1))

	if e.Propagate() {
		t.Fatalf("expected a conflict")
	}
	if !e.Trail.HasConflict() {
		t.Errorf("HasConflict() = false, want true")
	}
}

func TestEngine_AddClauseDetectsRootUnsat(t *testing.T) {
	e := newEngineN(1)
	if !e.AddClause([]Literal{PositiveLiteral(0)}) {
		t.Fatalf("first unit clause should not fail")
	}
	if e.AddClause([]Literal{NegativeLiteral(0)}) {
		t.Errorf("contradictory unit clause should fail")
	}
	if !e.Unsat() {
		t.Errorf("Unsat() = false, want true")
	}
}

func TestEngine_BacktrackUndoesAssignmentsAndConflict(t *testing.T) {
	e := newEngineN(2)
	e.AddClause([]Literal{PositiveLiteral(0), PositiveLiteral(1)})

	e.Trail.NewDecisionLevel()
	e.Trail.EnqueueSearchDecision(NegativeLiteral(0))
	e.Trail.NewDecisionLevel()
	e.Trail.EnqueueSearchDecision(NegativeLiteral(1))
	e.Propagate()

	e.Backtrack(0)

	if e.Trail.HasConflict() {
		t.Errorf("conflict should be cleared after Backtrack")
	}
	if e.Trail.NumAssigned() != 0 {
		t.Errorf("NumAssigned() = %d, want 0", e.Trail.NumAssigned())
	}
	if e.Trail.LitValue(PositiveLiteral(0)) != Unknown {
		t.Errorf("x0 should be unassigned after backtrack to level 0")
	}
}

func TestEngine_AnalyzeLearnsAssertingClause(t *testing.T) {
	// (!x0 v !x1 v x2) and (!x2 v x3) and (!x2 v !x3): deciding x0 and then
	// x1 forces x2, which forces both x3 and !x3, a conflict at x1's level.
	// Its 1-UIP is x2, so the learned clause is the unit (!x2), asserted
	// after backjumping to level 0.
	e := newEngineN(4)
	e.AddClause([]Literal{NegativeLiteral(0), NegativeLiteral(1), PositiveLiteral(2)})
	e.AddClause([]Literal{NegativeLiteral(2), PositiveLiteral(3)})
	e.AddClause([]Literal{NegativeLiteral(2), NegativeLiteral(3)})

	e.Trail.NewDecisionLevel()
	e.Trail.EnqueueSearchDecision(PositiveLiteral(0))
	e.Propagate()
	e.Trail.NewDecisionLevel()
	e.Trail.EnqueueSearchDecision(PositiveLiteral(1))

	if e.Propagate() {
		t.Fatalf("expected a conflict once x1 is forced true")
	}

	learnt, level := e.Analyze()
	if len(learnt) == 0 {
		t.Fatalf("Analyze returned an empty clause")
	}
	if level < 0 || level >= e.Trail.DecisionLevel() {
		t.Errorf("backtrack level %d out of range", level)
	}

	e.Backtrack(level)
	if !e.RecordLearnedClause(learnt) {
		t.Fatalf("recording the learned clause should not immediately conflict")
	}
}
