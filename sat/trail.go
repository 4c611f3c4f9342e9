package sat

// Trail is the ordered stack of Boolean assignments (decisions and
// propagations) the solver makes, along with enough per-entry metadata to
// reconstruct, for any assigned literal, a reason clause precise enough to
// drive conflict analysis. Entries are only ever appended or truncated from
// the top (Untrail), never edited in place except for reason caching.
type Trail struct {
	assigns []LBool // indexed by Literal

	trail    []Literal        // entries < Index() are assigned, invariant: trail[i] assigned at index i
	trailLim []int32          // trail length at the start of each decision level > 0
	info     []AssignmentInfo // indexed by variable id

	providers []ReasonProvider // indexed by reasonKind >= 0

	propQueue *Queue[Literal]

	// conflict holds at most one of the two representations described in
	// §4.1: an owned literal vector (MutableConflict) or a borrowed clause
	// (SetFailingSatClause).
	conflictLits  []Literal
	conflictClause *Clause
	hasConflict   bool
}

// NewTrail returns an empty Trail.
func NewTrail() *Trail {
	return &Trail{
		propQueue: NewQueue[Literal](128),
	}
}

// RegisterReasonProvider assigns provider a stable id to be stored in
// AssignmentInfo whenever it enqueues a literal via Enqueue. The id must be
// passed back into Enqueue for every literal this provider is responsible
// for.
func (t *Trail) RegisterReasonProvider(p ReasonProvider) int32 {
	id := int32(len(t.providers))
	t.providers = append(t.providers, p)
	return id
}

// NumVariables returns the number of Boolean variables created so far.
func (t *Trail) NumVariables() int {
	return len(t.assigns) / 2
}

// NumAssigned returns the number of currently assigned variables.
func (t *Trail) NumAssigned() int {
	return len(t.trail)
}

// Index returns the number of entries on the trail, i.e. the trail index the
// next Enqueue would receive.
func (t *Trail) Index() int {
	return len(t.trail)
}

// DecisionLevel returns the current decision level, 0 at the root.
func (t *Trail) DecisionLevel() int {
	return len(t.trailLim)
}

// NewDecisionLevel bumps the decision level. The caller must follow with
// exactly one EnqueueSearchDecision (the new decision literal).
func (t *Trail) NewDecisionLevel() {
	t.trailLim = append(t.trailLim, int32(len(t.trail)))
}

// AddVariable allocates a new Boolean variable and returns its id.
func (t *Trail) AddVariable() int {
	v := t.NumVariables()
	t.assigns = append(t.assigns, Unknown, Unknown)
	t.info = append(t.info, AssignmentInfo{})
	return v
}

// LitValue returns the current value of literal l.
func (t *Trail) LitValue(l Literal) LBool {
	return t.assigns[l]
}

// VarValue returns the current value of variable v, expressed as the value
// of its positive literal.
func (t *Trail) VarValue(v int) LBool {
	return t.assigns[PositiveLiteral(v)]
}

// Info returns the AssignmentInfo of variable v. Only meaningful while v is
// assigned.
func (t *Trail) Info(v int) AssignmentInfo {
	return t.info[v]
}

// Literal returns the literal assigned at trail index i.
func (t *Trail) Literal(i int) Literal {
	return t.trail[i]
}

// PropagationQueue exposes the pending-propagation queue of newly-true
// literals so that the scheduler (package csp) can drain it alongside its
// own integer-bound queue within one fixpoint.
func (t *Trail) PropagationQueue() *Queue[Literal] {
	return t.propQueue
}

func (t *Trail) push(l Literal, info AssignmentInfo) {
	v := l.VarID()
	info.trailIndex = int32(len(t.trail))
	info.level = int32(t.DecisionLevel())
	t.assigns[l] = True
	t.assigns[l.Negated()] = False
	t.info[v] = info
	t.trail = append(t.trail, l)
	t.propQueue.Push(l)
}

// Enqueue assigns lit true with the reason attributed to the given
// registered provider id. Precondition: lit.VarID() is unassigned. Returns
// false if lit's negation was already true (a conflict); the caller should
// then build a conflict via MutableConflict/SetFailingSatClause.
func (t *Trail) Enqueue(lit Literal, providerID int32) bool {
	return t.enqueue(lit, AssignmentInfo{kind: reasonKind(providerID)})
}

// EnqueueWithUnitReason assigns lit true with an empty reason: it holds
// unconditionally (e.g. a root-level unit clause).
func (t *Trail) EnqueueWithUnitReason(lit Literal) bool {
	return t.enqueue(lit, AssignmentInfo{kind: reasonUnit})
}

// EnqueueSearchDecision assigns lit true as a branching decision. The
// caller must have called NewDecisionLevel first.
func (t *Trail) EnqueueSearchDecision(lit Literal) bool {
	return t.enqueue(lit, AssignmentInfo{kind: reasonDecision})
}

// EnqueueWithSameReasonAs assigns lit true, delegating its reason to
// refVar's reason. Used when a propagator derives several literals from a
// single piece of evidence (e.g. value-literal propagation when an integer
// bound crosses several encoded values at once).
func (t *Trail) EnqueueWithSameReasonAs(lit Literal, refVar int) bool {
	return t.enqueue(lit, AssignmentInfo{kind: reasonSameAs, refVar: int32(refVar)})
}

func (t *Trail) enqueue(lit Literal, info AssignmentInfo) bool {
	switch t.LitValue(lit) {
	case False:
		return false
	case True:
		return true
	default:
		t.push(lit, info)
		return true
	}
}

// Dequeue removes the top assignment without touching its reason metadata.
// It is only ever called by Untrail.
func (t *Trail) Dequeue() Literal {
	n := len(t.trail) - 1
	l := t.trail[n]
	t.assigns[l] = Unknown
	t.assigns[l.Negated()] = Unknown
	t.trail = t.trail[:n]
	return l
}

// Untrail pops every entry down to (and not including) the first entry of
// level+1, restoring the decision level to level. It returns the popped
// literals in pop order (newest first) so callers (the scheduler and the
// propagators it notifies) can roll back their own side-structures in
// lockstep.
func (t *Trail) Untrail(level int) []Literal {
	if level >= t.DecisionLevel() {
		return nil
	}
	target := int(t.trailLim[level])
	popped := make([]Literal, 0, len(t.trail)-target)
	for len(t.trail) > target {
		popped = append(popped, t.Dequeue())
	}
	t.trailLim = t.trailLim[:level]
	t.ClearConflict()
	t.propQueue.Clear()
	return popped
}

// Reason returns the reason literals for the current assignment of variable
// v: a set of literals, all false at the time v was assigned, whose
// falsity entails v's value. The result is computed lazily on first call
// and cached on the AssignmentInfo; the cache is implicitly invalidated the
// next time v is assigned, since that overwrites AssignmentInfo wholesale.
func (t *Trail) Reason(v int) []Literal {
	info := &t.info[v]
	if info.kind == reasonCached {
		return info.cachedLits
	}

	effectiveVar := v
	if info.kind == reasonSameAs {
		effectiveVar = int(info.refVar)
	}
	eff := t.info[effectiveVar]

	var lits []Literal
	switch {
	case eff.kind == reasonUnit || eff.kind == reasonDecision:
		lits = nil
	case eff.kind == reasonCached:
		lits = eff.cachedLits
	case eff.kind == reasonSameAs:
		// A SameReasonAs chain longer than one hop should not occur, but
		// resolve it recursively rather than assume.
		lits = t.Reason(effectiveVar)
	default:
		lit := t.litOf(effectiveVar)
		// Providers may return a scratch buffer they reuse on the next call,
		// so the cached reason is a private copy.
		lits = append([]Literal(nil), t.providers[eff.kind].ReasonFor(int(eff.trailIndex), lit)...)
	}

	info.original = info.kind
	info.kind = reasonCached
	info.cachedLits = lits
	return lits
}

// litOf returns the literal of v that is currently true.
func (t *Trail) litOf(v int) Literal {
	if t.assigns[PositiveLiteral(v)] == True {
		return PositiveLiteral(v)
	}
	return NegativeLiteral(v)
}

// MutableConflict clears and returns a pointer to the owned conflict-literal
// buffer for a propagator to fill in place of SetFailingSatClause. At most
// one of the two conflict representations is active at a time.
func (t *Trail) MutableConflict() *[]Literal {
	t.conflictLits = t.conflictLits[:0]
	t.conflictClause = nil
	t.hasConflict = true
	return &t.conflictLits
}

// SetFailingSatClause records a falsified clause as the conflict.
func (t *Trail) SetFailingSatClause(c *Clause) {
	t.conflictLits = nil
	t.conflictClause = c
	t.hasConflict = true
}

// HasConflict reports whether a conflict is currently latched.
func (t *Trail) HasConflict() bool {
	return t.hasConflict
}

// ClearConflict drops any latched conflict.
func (t *Trail) ClearConflict() {
	t.conflictLits = nil
	t.conflictClause = nil
	t.hasConflict = false
}

// ConflictLiterals returns the literals of the current conflict clause as
// they are: all of them are false, so they already read as a reason under
// Reason's convention, regardless of which of the two representations
// produced the conflict.
func (t *Trail) ConflictLiterals(out *[]Literal) {
	if t.conflictClause != nil {
		t.conflictClause.explainConflict(out)
		return
	}
	*out = append((*out)[:0], t.conflictLits...)
}
