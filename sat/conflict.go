package sat

// Analyze walks the reason DAG backward from the Trail's current conflict
// to the first unique implication point (1-UIP) of the current decision
// level, producing a learned clause and the level to backjump to (§4.10).
//
// Every literal this function ever collects — from the conflict itself via
// Trail.ConflictLiterals, and from Trail.Reason(v) for each variable it
// expands — is, per the Reason convention (§4.1), a literal that is
// currently false. The learned clause is exactly the final resolvent of
// these false-literal sets: no extra negation is needed except for the
// 1-UIP literal itself, whose false counterpart was never walked into
// `learnt` because current-level literals are deliberately left unexpanded
// until only one remains.
//
// Precondition: trail.DecisionLevel() > 0 and trail.HasConflict().
func (e *Engine) Analyze() (learnt []Literal, backtrackLevel int) {
	trail := e.Trail
	curLevel := trail.DecisionLevel()

	e.seenVar.Clear()
	e.tmpLearnt = e.tmpLearnt[:0]
	nImplicationPoints := 0

	trail.ConflictLiterals(&e.tmpConflict)

	absorb := func(lits []Literal) {
		for _, r := range lits {
			v := r.VarID()
			if e.seenVar.Contains(v) {
				continue
			}
			e.seenVar.Add(v)
			lvl := trail.Info(v).Level()
			switch {
			case lvl == curLevel:
				nImplicationPoints++
			case lvl > 0:
				e.tmpLearnt = append(e.tmpLearnt, r)
				if lvl > backtrackLevel {
					backtrackLevel = lvl
				}
			}
			// lvl == 0: permanently false, contributes nothing and is
			// simply dropped from the learned clause.
		}
	}

	absorb(e.tmpConflict)

	nextIdx := trail.Index() - 1
	var uip Literal
	for {
		var v int
		for {
			l := trail.Literal(nextIdx)
			nextIdx--
			v = l.VarID()
			if e.seenVar.Contains(v) {
				uip = l
				break
			}
		}
		nImplicationPoints--
		if nImplicationPoints == 0 {
			break
		}
		absorb(trail.Reason(v))
	}

	learnt = make([]Literal, 0, len(e.tmpLearnt)+1)
	learnt = append(learnt, uip.Negated())
	learnt = append(learnt, e.tmpLearnt...)
	learnt = e.Binary.MinimizeClause(trail, learnt)

	return learnt, backtrackLevel
}

// lbd (literal block distance) counts the number of distinct decision
// levels represented among clause's literals, the standard learned-clause
// quality metric (§GLOSSARY).
func (e *Engine) lbd(clause []Literal) uint32 {
	if len(clause) == 0 {
		return 0
	}
	seen := map[int]bool{}
	for _, l := range clause {
		lvl := e.Trail.Info(l.VarID()).Level()
		seen[lvl] = true
	}
	return uint32(len(seen))
}

// RecordLearnedClause attaches a clause produced by Analyze, enqueuing its
// asserting (1-UIP) literal. The caller must have already backtracked to
// the level Analyze returned.
func (e *Engine) RecordLearnedClause(clause []Literal) bool {
	if len(clause) == 1 {
		return e.Trail.EnqueueWithUnitReason(clause[0])
	}
	return e.Clauses.AddLearnedClause(clause, e.lbd(clause))
}

// conflictCoreDecisions walks the full reason DAG of the current conflict —
// not stopping at the first unique implication point — down to the search
// decisions that produced it, for GetLastIncompatibleDecisions (§6): the
// assumption literals asserted as decisions that are jointly responsible
// for the conflict.
func (e *Engine) conflictCoreDecisions() []Literal {
	trail := e.Trail

	e.seenVar.Clear()
	var frontier []Literal
	trail.ConflictLiterals(&e.tmpConflict)
	frontier = append(frontier, e.tmpConflict...)

	var decisions []Literal
	for i := 0; i < len(frontier); i++ {
		r := frontier[i]
		v := r.VarID()
		if e.seenVar.Contains(v) {
			continue
		}
		e.seenVar.Add(v)

		info := trail.Info(v)
		if info.IsDecision() {
			lit := trail.Literal(info.TrailIndex())
			if e.assumptions[v] {
				decisions = append(decisions, lit)
			}
			continue
		}
		frontier = append(frontier, trail.Reason(v)...)
	}
	return decisions
}

// GetLastIncompatibleDecisions returns the assumption literals whose joint
// assertion produced the engine's current conflict, in the order they were
// decided. Meaningful only while Trail.HasConflict() and the assumptions
// were registered via SetAssumptions.
func (e *Engine) GetLastIncompatibleDecisions() []Literal {
	if !e.Trail.HasConflict() {
		return nil
	}
	core := e.conflictCoreDecisions()
	// Order by trail index (decision order) rather than DAG-discovery order.
	sortByTrailIndex(e.Trail, core)
	return core
}

func sortByTrailIndex(trail *Trail, lits []Literal) {
	for i := 1; i < len(lits); i++ {
		for j := i; j > 0; j-- {
			li := trail.Info(lits[j].VarID()).TrailIndex()
			lj := trail.Info(lits[j-1].VarID()).TrailIndex()
			if li >= lj {
				break
			}
			lits[j], lits[j-1] = lits[j-1], lits[j]
		}
	}
}
