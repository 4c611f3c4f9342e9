package sat

// Engine is the Boolean SAT core: Trail plus the two Boolean propagators
// registered on it (BinaryImplicationGraph and ClauseStore) plus conflict
// analysis. It implements the "SAT-level propagators run first" half of
// §4.6's ordering guarantee; the generic CP scheduler (package csp) wraps
// an Engine and runs its own propagators after Engine.Propagate reaches a
// Boolean fixpoint.
type Engine struct {
	Trail   *Trail
	Binary  *BinaryImplicationGraph
	Clauses *ClauseStore

	unsat bool

	seenVar     ResetSet
	tmpLearnt   []Literal
	tmpConflict []Literal

	assumptions map[int]bool // variable id -> is an assumption literal
}

// NewEngine returns an empty Boolean engine.
func NewEngine(clauseDecay float64) *Engine {
	trail := NewTrail()
	return &Engine{
		Trail:       trail,
		Binary:      NewBinaryImplicationGraph(trail),
		Clauses:     NewClauseStore(trail, clauseDecay),
		assumptions: map[int]bool{},
	}
}

// Unsat reports whether the engine has latched a model-level (decision
// level 0) conflict.
func (e *Engine) Unsat() bool { return e.unsat }

// AddVariable allocates a fresh Boolean variable across the trail and both
// Boolean propagators.
func (e *Engine) AddVariable() int {
	v := e.Trail.AddVariable()
	e.Binary.AddVariable()
	e.Clauses.AddVariable()
	e.seenVar.Expand()
	return v
}

// AddClause adds a clause, dispatching to the binary implication graph for
// size-2 clauses and to the clause store otherwise. Safe to call above the
// root decision level for clauses that hold unconditionally (e.g. encoder
// order implications): such clauses are always satisfied by construction
// at the moment they are added, so they can only ever later become unit or
// stay satisfied, never immediately conflicting. Returns false if the
// problem is now known unsatisfiable.
func (e *Engine) AddClause(literals []Literal) bool {
	if e.unsat {
		return false
	}

	switch len(literals) {
	case 2:
		a, b := literals[0], literals[1]
		if a == b.Negated() {
			return true // tautology
		}
		va, vb := e.Trail.LitValue(a), e.Trail.LitValue(b)
		if va == True || vb == True {
			return true
		}
		if va == False && vb == False {
			e.unsat = true
			return false
		}
		e.Binary.AddBinaryClause(a, b)
		if va == False {
			e.Binary.reasonOf[b] = a.Negated()
			if !e.Trail.Enqueue(b, e.Binary.providerID) {
				e.unsat = true
				return false
			}
		} else if vb == False {
			e.Binary.reasonOf[a] = b.Negated()
			if !e.Trail.Enqueue(a, e.Binary.providerID) {
				e.unsat = true
				return false
			}
		}
		return true
	default:
		ok := e.Clauses.AddClause(literals)
		if !ok {
			e.unsat = true
		}
		return ok
	}
}

// SetAssumptions flags the given literals' variables as assumption
// literals, for GetLastIncompatibleDecisions to recognize once they are
// asserted as search decisions.
func (e *Engine) SetAssumptions(lits []Literal) {
	e.assumptions = make(map[int]bool, len(lits))
	for _, l := range lits {
		e.assumptions[l.VarID()] = true
	}
}

// Propagate drains the Boolean propagation queue to a fixpoint, running the
// binary implication graph before the clause store for each literal as
// §4.6 orders "binary → clause". Returns false (with a conflict latched on
// the Trail) if a clause or binary implication is falsified.
func (e *Engine) Propagate() bool {
	q := e.Trail.PropagationQueue()
	for q.Size() > 0 {
		l := q.Pop()
		if !e.Binary.PropagateOnTrue(l, e.Trail) {
			return false
		}
		if !e.Clauses.PropagateOnFalse(l, e.Trail) {
			return false
		}
	}
	return true
}

// Backtrack rolls the trail back to level and drops any latched conflict.
// Propagators with their own side-state keyed off trail indices (the
// IntegerTrail, the precedence and cumulative propagators) must be rolled
// back by the caller using the returned popped literals before resuming
// search: the Trail does not notify its ReasonProviders on Untrail.
func (e *Engine) Backtrack(level int) []Literal {
	return e.Trail.Untrail(level)
}

// Decide bumps the decision level and asserts lit as a search decision.
func (e *Engine) Decide(lit Literal) bool {
	e.Trail.NewDecisionLevel()
	return e.Trail.EnqueueSearchDecision(lit)
}
