package sat

import "testing"

func TestEngine_GetLastIncompatibleDecisionsReportsAssumptionCore(t *testing.T) {
	// Assumptions a0, a1 jointly imply x2 and !x2 (via two clauses), so both
	// should be reported as the incompatible core.
	e := newEngineN(3)
	e.AddClause([]Literal{NegativeLiteral(0), NegativeLiteral(1), PositiveLiteral(2)})
	e.AddClause([]Literal{NegativeLiteral(0), NegativeLiteral(1), NegativeLiteral(2)})

	a0, a1 := PositiveLiteral(0), PositiveLiteral(1)
	e.SetAssumptions([]Literal{a0, a1})

	e.Trail.NewDecisionLevel()
	e.Trail.EnqueueSearchDecision(a0)
	e.Propagate()
	e.Trail.NewDecisionLevel()
	e.Trail.EnqueueSearchDecision(a1)

	if e.Propagate() {
		t.Fatalf("expected a conflict once both assumptions are asserted")
	}

	got := e.GetLastIncompatibleDecisions()
	if len(got) != 2 {
		t.Fatalf("GetLastIncompatibleDecisions() = %v, want 2 literals", got)
	}
	if got[0] != a0 || got[1] != a1 {
		t.Errorf("GetLastIncompatibleDecisions() = %v, want [%v %v]", got, a0, a1)
	}
}
