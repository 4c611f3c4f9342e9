package sat

import "github.com/rhartert/yagh"

// watcherEntry is one entry of a literal's watch list: the watched clause
// plus a blocking literal (the clause's other watched literal). When the
// blocking literal is true the clause is known satisfied without touching
// the clause itself — a cache-locality optimization from §4.2.
type watcherEntry struct {
	clause   ClauseID
	blocking Literal
}

// ClauseStore ("LiteralWatchers", §4.2) owns every clause of size >= 2 in an
// arena and propagates them via the two-watched-literal scheme. It is a
// ReasonProvider registered with the Trail under its own provider id.
type ClauseStore struct {
	trail *Trail

	arena    []Clause
	freeList []ClauseID

	watchers [][]watcherEntry // indexed by Literal

	constraints []ClauseID
	learnts     []ClauseID

	clauseInc   float64
	clauseDecay float64

	providerID int32

	// reasonClause[v] is the clause that last propagated variable v's
	// literal, kept so ReasonFor and locked() can recover it in O(1)
	// without scanning the arena.
	reasonClause []*Clause

	// tmpWatchers is reused across PropagateOnFalse calls to avoid
	// reallocating a scratch buffer on every call.
	tmpWatchers []watcherEntry
	tmpReason   []Literal
}

// NewClauseStore creates a clause store attached to trail and registers it
// as a reason provider.
func NewClauseStore(trail *Trail, clauseDecay float64) *ClauseStore {
	cs := &ClauseStore{
		trail:       trail,
		clauseInc:   1,
		clauseDecay: clauseDecay,
	}
	cs.providerID = trail.RegisterReasonProvider(cs)
	return cs
}

// AddVariable grows the watch lists for a newly-created Boolean variable.
func (cs *ClauseStore) AddVariable() {
	cs.watchers = append(cs.watchers, nil, nil)
	cs.reasonClause = append(cs.reasonClause, nil)
}

func (cs *ClauseStore) clauseAt(id ClauseID) *Clause { return &cs.arena[id] }

func (cs *ClauseStore) alloc() ClauseID {
	if n := len(cs.freeList); n > 0 {
		id := cs.freeList[n-1]
		cs.freeList = cs.freeList[:n-1]
		return id
	}
	cs.arena = append(cs.arena, Clause{})
	return ClauseID(len(cs.arena) - 1)
}

// watch adds clause id to the watch list of literal watch, with blocking as
// the other watched literal.
func (cs *ClauseStore) watch(id ClauseID, watch, blocking Literal) {
	cs.watchers[watch] = append(cs.watchers[watch], watcherEntry{clause: id, blocking: blocking})
}

// unwatch removes clause id from the watch list of literal watch.
func (cs *ClauseStore) unwatch(id ClauseID, watch Literal) {
	list := cs.watchers[watch]
	j := 0
	for i := range list {
		if list[i].clause != id {
			list[j] = list[i]
			j++
		}
	}
	cs.watchers[watch] = list[:j]
}

// AddClause adds a problem clause at the root level. literals may be reused
// and mutated by this call (its surviving prefix is copied into the arena).
// It returns false if the clause set is now known unsatisfiable (an empty
// clause was derived).
func (cs *ClauseStore) AddClause(literals []Literal) bool {
	id, ok := cs.newClause(literals, false)
	if ok && id != noClause {
		cs.constraints = append(cs.constraints, id)
	}
	return ok
}

// AddLearnedClause attaches a conflict-derived clause, enqueuing its first
// literal as a unit propagation (§4.2 AttachAndEnqueuePotentialUnitPropagation).
// literals[0] must be the asserting (1-UIP) literal and must currently be
// unassigned.
func (cs *ClauseStore) AddLearnedClause(literals []Literal, lbd uint32) bool {
	cs.DecayActivity()

	id, ok := cs.newClause(literals, true)
	if !ok {
		return false
	}
	if id == noClause {
		// Unit learned clause: the literal was enqueued directly by newClause.
		return true
	}
	c := cs.clauseAt(id)
	c.lbd = lbd
	cs.learnts = append(cs.learnts, id)
	cs.reasonClause[c.literals[0].VarID()] = c
	cs.BumpActivity(id)
	return cs.trail.Enqueue(c.literals[0], cs.providerID)
}

// newClause performs the shared clause-construction logic used by AddClause
// and AddLearnedClause: dedup/simplify against the current (root-level)
// assignment for problem clauses, direct unit enqueue for singletons, and
// two-watched-literal attachment otherwise. It returns noClause when no
// attached clause resulted (unit propagated or trivially true), with ok
// reporting whether the solver remains consistent.
func (cs *ClauseStore) newClause(tmp []Literal, learnt bool) (ClauseID, bool) {
	size := len(tmp)

	if !learnt {
		seen := map[Literal]struct{}{}
		for i := size - 1; i >= 0; i-- {
			if _, ok := seen[tmp[i].Negated()]; ok {
				return noClause, true // a ∨ ¬a: trivially true
			}
			if _, ok := seen[tmp[i]]; ok {
				size--
				tmp[i], tmp[size] = tmp[size], tmp[i]
				continue
			}
			seen[tmp[i]] = struct{}{}

			switch cs.trail.LitValue(tmp[i]) {
			case True:
				return noClause, true
			case False:
				size--
				tmp[i], tmp[size] = tmp[size], tmp[i]
			}
		}
		tmp = tmp[:size]
	}

	switch size {
	case 0:
		return noClause, false
	case 1:
		return noClause, cs.trail.EnqueueWithUnitReason(tmp[0])
	default:
		id := cs.alloc()
		c := cs.clauseAt(id)
		c.literals = append(c.literals[:0], tmp...)
		c.prevPos = 2
		c.status = 0
		c.activity = 0
		c.lbd = 0

		if learnt {
			c.status |= statusLearnt
			// Watch the most-recently-falsified literal as the second
			// watcher: critical for the watch invariant to survive the
			// upcoming backjump (§4.2).
			maxLevel, wl := -1, 1
			for i, lit := range c.literals {
				if lvl := cs.levelOf(lit); lvl > maxLevel {
					maxLevel, wl = lvl, i
				}
			}
			c.literals[wl], c.literals[1] = c.literals[1], c.literals[wl]
		}

		cs.watch(id, c.literals[0].Negated(), c.literals[1])
		cs.watch(id, c.literals[1].Negated(), c.literals[0])
		return id, true
	}
}

func (cs *ClauseStore) levelOf(l Literal) int {
	if cs.trail.LitValue(l) == Unknown {
		return -1
	}
	return cs.trail.Info(l.VarID()).Level()
}

// PropagateOnFalse is called by the Boolean engine for each literal l
// dequeued true from the trail's propagation queue: every clause watching l
// (i.e. whose negated watched literal just became false) is re-examined.
// Returns false and latches a conflict on the trail if some clause is
// falsified.
func (cs *ClauseStore) PropagateOnFalse(l Literal, trail *Trail) bool {
	list := cs.watchers[l]

	cs.tmpWatchers = append(cs.tmpWatchers[:0], list...)
	cs.watchers[l] = cs.watchers[l][:0]

	for i, w := range cs.tmpWatchers {
		if trail.LitValue(w.blocking) == True {
			cs.watchers[l] = append(cs.watchers[l], w)
			continue
		}

		if cs.propagateOne(w.clause, l, trail) {
			continue
		}

		// Conflict: restore the remaining, not-yet-examined watchers so the
		// invariant holds if the caller resumes propagation after analysis.
		cs.watchers[l] = append(cs.watchers[l], cs.tmpWatchers[i+1:]...)
		trail.SetFailingSatClause(cs.clauseAt(w.clause))
		return false
	}
	return true
}

func (cs *ClauseStore) propagateOne(id ClauseID, l Literal, trail *Trail) bool {
	c := cs.clauseAt(id)

	opp := l.Negated()
	if c.literals[0] == opp {
		c.literals[0], c.literals[1] = c.literals[1], opp
	}

	if trail.LitValue(c.literals[0]) == True {
		cs.watch(id, l, c.literals[0])
		return true
	}

	if int(c.prevPos) >= len(c.literals) {
		c.prevPos = 2
	}
	for i := int(c.prevPos); i < len(c.literals); i++ {
		if trail.LitValue(c.literals[i]) != False {
			c.prevPos = int32(i)
			c.literals[1], c.literals[i] = c.literals[i], l.Negated()
			cs.watch(id, c.literals[1].Negated(), c.literals[0])
			return true
		}
	}
	for i := 2; i < int(c.prevPos) && i < len(c.literals); i++ {
		if trail.LitValue(c.literals[i]) != False {
			c.prevPos = int32(i)
			c.literals[1], c.literals[i] = c.literals[i], l.Negated()
			cs.watch(id, c.literals[1].Negated(), c.literals[0])
			return true
		}
	}

	cs.watch(id, l, c.literals[0])
	if trail.LitValue(c.literals[0]) == False {
		return false // falsified: this clause did not propagate literals[0]
	}
	cs.reasonClause[c.literals[0].VarID()] = c
	return trail.Enqueue(c.literals[0], cs.providerID)
}

// ReasonFor implements ReasonProvider: the reason for the assignment made by
// a clause is every other literal in the clause, as is (all of them false).
func (cs *ClauseStore) ReasonFor(trailIndex int, lit Literal) []Literal {
	c := cs.reasonClause[lit.VarID()]
	c.explainAssign(&cs.tmpReason)
	return cs.tmpReason
}

// BumpActivity increases a learned clause's activity score, rescaling every
// learned clause's activity if it would otherwise overflow.
func (cs *ClauseStore) BumpActivity(id ClauseID) {
	c := cs.clauseAt(id)
	c.activity += cs.clauseInc
	if c.activity > 1e100 {
		cs.clauseInc *= 1e-100
		for _, lid := range cs.learnts {
			cs.clauseAt(lid).activity *= 1e-100
		}
	}
}

// DecayActivity ages every learned clause's relative importance.
func (cs *ClauseStore) DecayActivity() {
	cs.clauseInc /= cs.clauseDecay
}

// locked reports whether clause id is the current reason for its own first
// literal's assignment, meaning it must not be deleted.
func (cs *ClauseStore) locked(id ClauseID) bool {
	c := cs.clauseAt(id)
	v := c.literals[0].VarID()
	if cs.trail.VarValue(v) == Unknown {
		return false
	}
	info := cs.trail.Info(v)
	kind := info.kind
	if kind == reasonCached {
		kind = info.original
	}
	return kind == reasonKind(cs.providerID) && cs.reasonClause[v] == c
}

// LazyDetach marks clause id deleted, removes it from the watch lists of its
// two watched literals right away, and returns its arena slot to the free
// list for reuse.
func (cs *ClauseStore) LazyDetach(id ClauseID) {
	c := cs.clauseAt(id)
	c.status |= statusDeleted
	cs.unwatch(id, c.literals[0].Negated())
	cs.unwatch(id, c.literals[1].Negated())
	c.literals = nil
	cs.freeList = append(cs.freeList, id)
}

// CleanUpWatchers sweeps deleted clauses out of every watch list. LazyDetach
// already removes the two literals a clause was watched on directly (§4.2
// describes the general sweep for implementations that defer even that);
// this keeps watch lists exactly in sync with AddClause/LazyDetach calls, so
// CleanUpWatchers here is a cheap idempotent no-op kept for interface
// parity with the spec.
func (cs *ClauseStore) CleanUpWatchers() {}

// ReduceDB detaches every learned clause in the least active half (by
// activity rank) that is neither locked nor protected, using a yagh.IntMap
// keyed by position in the learned-clause list as an activity-ordered heap
// rather than a full sort
// (mirrors the role the teacher's ordering.go gives yagh for variables,
// repurposed here for clauses since variable-selection heuristics are out
// of scope).
func (cs *ClauseStore) ReduceDB() {
	if len(cs.learnts) == 0 {
		return
	}
	total := len(cs.learnts)
	order := yagh.New[float64](total)
	order.GrowBy(total)
	for i, id := range cs.learnts {
		order.Put(i, cs.clauseAt(id).activity) // ascending: least active first
	}

	kept := make([]ClauseID, 0, total)
	half := total / 2
	for rank := 0; rank < total; rank++ {
		item, ok := order.Pop()
		if !ok {
			break
		}
		id := cs.learnts[item.Elem]
		c := cs.clauseAt(id)
		if rank < half && !cs.locked(id) && !c.isProtected() {
			cs.LazyDetach(id)
			continue
		}
		c.setUnprotected()
		kept = append(kept, id)
	}
	cs.learnts = kept
	cs.CleanUpWatchers()
}

// SimplifyAtRoot removes literals falsified at the root level from every
// attached clause and detaches clauses that are now known true. Must only
// be called while DecisionLevel() == 0 and the propagation queue is empty.
func (cs *ClauseStore) SimplifyAtRoot() {
	cs.simplifySlice(&cs.learnts)
	cs.simplifySlice(&cs.constraints)
}

func (cs *ClauseStore) simplifySlice(ids *[]ClauseID) {
	kept := (*ids)[:0]
	for _, id := range *ids {
		c := cs.clauseAt(id)
		if c.simplify(cs.trail) {
			cs.LazyDetach(id)
		} else {
			kept = append(kept, id)
		}
	}
	*ids = kept
	cs.CleanUpWatchers()
}
