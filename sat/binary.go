package sat

// BinaryImplicationGraph propagates binary clauses directly as edges of an
// implication graph (§4.3): a binary clause a∨b is stored as the pair of
// implications ¬a→b and ¬b→a. It is registered with the Trail as a
// ReasonProvider.
type BinaryImplicationGraph struct {
	trail *Trail

	implications [][]Literal // indexed by Literal

	providerID int32

	// reasonOf[v] is the literal that implied v's current assignment,
	// i.e. the single literal p such that p -> lit is the edge used.
	reasonOf []Literal

	tmpReason []Literal
}

// NewBinaryImplicationGraph creates an empty graph attached to trail.
func NewBinaryImplicationGraph(trail *Trail) *BinaryImplicationGraph {
	g := &BinaryImplicationGraph{trail: trail}
	g.providerID = trail.RegisterReasonProvider(g)
	return g
}

// AddVariable grows the adjacency lists for a newly-created variable.
func (g *BinaryImplicationGraph) AddVariable() {
	g.implications = append(g.implications, nil, nil)
	g.reasonOf = append(g.reasonOf, NoLiteral, NoLiteral)
}

// AddBinaryClause records a∨b as two implications.
func (g *BinaryImplicationGraph) AddBinaryClause(a, b Literal) {
	g.implications[a.Negated()] = append(g.implications[a.Negated()], b)
	g.implications[b.Negated()] = append(g.implications[b.Negated()], a)
}

// Implied returns the literals directly implied by l being true.
func (g *BinaryImplicationGraph) Implied(l Literal) []Literal {
	return g.implications[l]
}

// PropagateOnTrue is called for each literal dequeued true from the trail's
// propagation queue. It enqueues every literal binary-implied by trueLit,
// and latches a conflict (as an owned two-literal clause) if one is found
// false.
func (g *BinaryImplicationGraph) PropagateOnTrue(trueLit Literal, trail *Trail) bool {
	for _, implied := range g.implications[trueLit] {
		switch trail.LitValue(implied) {
		case True:
			continue
		case False:
			// Both trueLit.Negated() and implied are currently false,
			// falsifying the underlying binary clause.
			conflict := trail.MutableConflict()
			*conflict = append(*conflict, trueLit.Negated(), implied)
			return false
		default:
			g.reasonOf[implied] = trueLit
			if !trail.Enqueue(implied, g.providerID) {
				return false
			}
		}
	}
	return true
}

// ReasonFor implements ReasonProvider: the reason for a binary-implied
// literal is the single literal that implied it, negated.
func (g *BinaryImplicationGraph) ReasonFor(trailIndex int, lit Literal) []Literal {
	cause := g.reasonOf[lit]
	g.tmpReason = append(g.tmpReason[:0], cause.Negated())
	return g.tmpReason
}

// MinimizeClause removes self-subsumed literals from a freshly learned
// conflict clause (§4.3). Literal p (other than the asserting literal at
// position 0, which is never touched) is dropped when some x implied by p
// (x ∈ implications[p]) is itself present in the clause at a decision level
// no greater than p's: the binary clause (¬p ∨ x) that the edge p→x
// witnesses, combined with x already being in the clause, resolves away p
// (¬p∨x resolved against the clause on x yields a subset of the clause that
// no longer needs p). Ties among literals at the same level are broken by
// an "already removed" bit so that a cycle of same-level literals does not
// delete every member of the cycle.
func (g *BinaryImplicationGraph) MinimizeClause(trail *Trail, clause []Literal) []Literal {
	if len(clause) <= 1 {
		return clause
	}

	inClause := make(map[Literal]bool, len(clause))
	for _, l := range clause {
		inClause[l] = true
	}
	removed := make(map[Literal]bool)

	kept := append([]Literal(nil), clause[0])
	for _, p := range clause[1:] {
		pLevel := trail.Info(p.VarID()).Level()
		redundant := false
		for _, x := range g.implications[p] {
			if !inClause[x] || removed[x] {
				continue
			}
			if trail.Info(x.VarID()).Level() <= pLevel {
				redundant = true
				break
			}
		}
		if redundant {
			removed[p] = true
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
