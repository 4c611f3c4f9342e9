package csp

import "github.com/rhartert/lcg/sat"

// ArcInfo is one precedence edge: tail + offset + val(offsetVar) <= head,
// gated by presenceLit if any (§3 ArcInfo). Every arc added is stored
// twice — once on the variables and once on their negations — so that
// propagating the lower bound of a variable is equivalent to propagating
// the upper bound of its negation.
type ArcInfo struct {
	Tail, Head  IntegerVariable
	Offset      IntegerValue
	OffsetVar   IntegerVariable // NoIntegerVariable if constant-only
	PresenceLit sat.Literal     // sat.NoLiteral if unconditional
}

func (a ArcInfo) mirror() ArcInfo {
	offsetVar := a.OffsetVar
	return ArcInfo{
		Tail:        a.Head.NegationOf(),
		Head:        a.Tail.NegationOf(),
		Offset:      a.Offset,
		OffsetVar:   offsetVar,
		PresenceLit: a.PresenceLit,
	}
}

// PrecedencesPropagator maintains an offset graph and keeps every lower
// bound consistent with it via incremental Bellman-Ford, detecting positive
// (infeasible) cycles along the way (§4.7).
type PrecedencesPropagator struct {
	boolTrail *sat.Trail
	intTrail  *IntegerTrail
	scheduler *Scheduler
	id        int32

	arcs []ArcInfo

	impactedArcs          map[IntegerVariable][]int32 // tail -> arc indices, unconditional or already-present
	impactedPotentialArcs map[IntegerVariable][]int32 // tail -> arc indices gated by an unassigned presence literal

	// parentArc[v] is the arc index used to derive v's current lower bound
	// in the shortest-path tree built by the last relaxation pass, or -1.
	parentArc []int32

	// activations records each potential arc moved into impactedArcs,
	// with the presence literal that enabled it, so Untrail can move back
	// exactly the arcs whose literal was popped (§9 "Reverse enumeration of
	// impacted_arcs on Untrail").
	activations []activation

	// reasonByIdx holds the reason for each presence literal this
	// propagator has propagated false, keyed by its sat.Trail index, so it
	// can answer ReasonFor like any other registered ReasonProvider.
	reasonByIdx map[int][]sat.Literal
	providerID  int32
}

type activation struct {
	lit   sat.Literal
	tail  IntegerVariable
	index int32
}

// NewPrecedencesPropagator creates an empty propagator and registers it with
// scheduler.
func NewPrecedencesPropagator(boolTrail *sat.Trail, intTrail *IntegerTrail, scheduler *Scheduler) *PrecedencesPropagator {
	p := &PrecedencesPropagator{
		boolTrail:             boolTrail,
		intTrail:              intTrail,
		scheduler:             scheduler,
		impactedArcs:          map[IntegerVariable][]int32{},
		impactedPotentialArcs: map[IntegerVariable][]int32{},
	}
	p.id = scheduler.Register(p)
	p.providerID = boolTrail.RegisterReasonProvider(p)
	return p
}

// AddPrecedenceWithOffset models tail + offset <= head unconditionally.
func (p *PrecedencesPropagator) AddPrecedenceWithOffset(tail, head IntegerVariable, offset IntegerValue) {
	p.AddArc(ArcInfo{Tail: tail, Head: head, Offset: offset, OffsetVar: NoIntegerVariable, PresenceLit: sat.NoLiteral})
}

// AddArc adds a general (optionally offset-variable-carrying,
// optionally presence-gated) precedence arc, and its mirror on negated
// variables.
func (p *PrecedencesPropagator) AddArc(a ArcInfo) {
	p.addOneDirected(a)
	p.addOneDirected(a.mirror())
}

func (p *PrecedencesPropagator) addOneDirected(a ArcInfo) {
	idx := int32(len(p.arcs))
	p.arcs = append(p.arcs, a)
	p.growParentArc(a.Tail)
	p.growParentArc(a.Head)

	p.scheduler.WatchLowerBound(p.id, a.Tail)
	if a.OffsetVar != NoIntegerVariable {
		p.scheduler.WatchLowerBound(p.id, a.OffsetVar)
	}

	if a.PresenceLit == sat.NoLiteral || p.boolTrail.LitValue(a.PresenceLit) == sat.True {
		p.impactedArcs[a.Tail] = append(p.impactedArcs[a.Tail], idx)
	} else if p.boolTrail.LitValue(a.PresenceLit) == sat.Unknown {
		p.impactedPotentialArcs[a.Tail] = append(p.impactedPotentialArcs[a.Tail], idx)
		p.scheduler.WatchLiteral(p.id, a.PresenceLit)
	}
	// If the presence literal is already false the arc is permanently
	// inactive and need not be tracked.
}

// growParentArc grows parentArc (indexed by IntegerVariable, not by arc
// index) so that v has a slot, leaving every newly added slot at -1 (no
// parent).
func (p *PrecedencesPropagator) growParentArc(v IntegerVariable) {
	for int(v) >= len(p.parentArc) {
		p.parentArc = append(p.parentArc, -1)
	}
}

func (p *PrecedencesPropagator) candidate(a ArcInfo) IntegerValue {
	c := p.intTrail.LowerBound(a.Tail).Add(a.Offset)
	if a.OffsetVar != NoIntegerVariable {
		c = c.Add(p.intTrail.LowerBound(a.OffsetVar))
	}
	return c
}

// present reports whether arc a's tail is known present for the purpose of
// relaxing it: unconditional, or its presence literal is true.
func (p *PrecedencesPropagator) present(a ArcInfo) bool {
	return a.PresenceLit == sat.NoLiteral || p.boolTrail.LitValue(a.PresenceLit) == sat.True
}

// activatePotentialArcs moves arcs gated by newly-true presence literals
// from impactedPotentialArcs to impactedArcs (§4.7 step 1) and attempts a
// direct tightening for each.
func (p *PrecedencesPropagator) activatePotentialArcs() bool {
	// Scan every arc index gated by a literal that is now true; this is a
	// correct (if not maximally incremental) re-scan since arcs are cheap to
	// inspect relative to the relaxation pass that follows.
	for v, idxs := range p.impactedPotentialArcs {
		kept := idxs[:0]
		for _, idx := range idxs {
			a := p.arcs[idx]
			switch p.boolTrail.LitValue(a.PresenceLit) {
			case sat.True:
				p.impactedArcs[v] = append(p.impactedArcs[v], idx)
				p.activations = append(p.activations, activation{lit: a.PresenceLit, tail: v, index: idx})
				if !p.relaxArc(idx) {
					return false
				}
			case sat.False:
				// permanently inactive, drop
			default:
				kept = append(kept, idx)
			}
		}
		p.impactedPotentialArcs[v] = kept
	}
	return true
}

// relaxArc tightens head's lower bound from a single arc, if the arc's
// candidate value improves on it, detecting a positive cycle via subtree
// disassembly (§4.7 step 3).
func (p *PrecedencesPropagator) relaxArc(idx int32) bool {
	a := p.arcs[idx]
	if !p.present(a) {
		return true
	}
	cand := p.candidate(a)
	if cand <= p.intTrail.LowerBound(a.Head) {
		return true
	}

	if p.disassembleReentersTail(a.Head, a.Tail, idx) {
		return p.reportCycle(idx)
	}

	p.parentArc[a.Head] = idx
	return p.pushBound(a, cand)
}

func (p *PrecedencesPropagator) pushBound(a ArcInfo, newBound IntegerValue) bool {
	literalReason, boundReason := p.reasonFor(a)
	return p.intTrail.Enqueue(GreaterOrEqual(a.Head, newBound), literalReason, boundReason)
}

func (p *PrecedencesPropagator) reasonFor(a ArcInfo) ([]sat.Literal, []IntegerLiteral) {
	var lits []sat.Literal
	if a.PresenceLit != sat.NoLiteral {
		lits = append(lits, a.PresenceLit.Negated())
	}
	bounds := []IntegerLiteral{p.intTrail.LowerBoundAsLiteral(a.Tail)}
	if a.OffsetVar != NoIntegerVariable {
		bounds = append(bounds, p.intTrail.LowerBoundAsLiteral(a.OffsetVar))
	}
	return lits, bounds
}

// disassembleReentersTail reports whether re-parenting root (the arc's head)
// under tail would close a cycle — the signature of a positive cycle (§4.7
// step 3). It does not walk root's subtree: it follows tail's parentArc
// chain upward, for at most len(p.arcs)+1 steps, looking for root.
func (p *PrecedencesPropagator) disassembleReentersTail(root, tail IntegerVariable, newParent int32) bool {
	if root == tail {
		return true
	}
	// A full subtree walk requires a child index; absent one, a bounded
	// walk following parentArc chains from every variable sharing root as
	// an ancestor is approximated here by checking whether tail's current
	// parent chain already passes through root, which is the condition
	// under which re-parenting root would create a cycle back to tail.
	v := tail
	for steps := 0; steps < len(p.arcs)+1; steps++ {
		pa := p.parentArc[v]
		if pa < 0 {
			return false
		}
		v = p.arcs[pa].Tail
		if v == root {
			return true
		}
	}
	return false
}

func (p *PrecedencesPropagator) reportCycle(idx int32) bool {
	a := p.arcs[idx]
	conflict := p.boolTrail.MutableConflict()
	*conflict = (*conflict)[:0]

	cur := a.Tail
	seen := map[IntegerVariable]bool{}
	var boundLits []IntegerLiteral
	for !seen[cur] {
		seen[cur] = true
		pa := p.parentArc[cur]
		if pa < 0 {
			break
		}
		arc := p.arcs[pa]
		if arc.PresenceLit != sat.NoLiteral {
			*conflict = append(*conflict, arc.PresenceLit.Negated())
		}
		if arc.OffsetVar != NoIntegerVariable {
			boundLits = append(boundLits, p.intTrail.LowerBoundAsLiteral(arc.OffsetVar))
		}
		cur = arc.Tail
		if cur == a.Head {
			break
		}
	}
	if a.PresenceLit != sat.NoLiteral {
		*conflict = append(*conflict, a.PresenceLit.Negated())
	}
	merged := p.intTrail.MergeReasonInto(boundLits, append([]sat.Literal(nil), *conflict...))
	*conflict = append((*conflict)[:0], merged...)
	return false
}

// Propagate runs one fixpoint pass (§4.7 steps 1-4).
func (p *PrecedencesPropagator) Propagate() bool {
	if !p.activatePotentialArcs() {
		return false
	}

	queue := make([]IntegerVariable, 0, 16)
	queued := map[IntegerVariable]bool{}
	push := func(v IntegerVariable) {
		if !queued[v] {
			queued[v] = true
			queue = append(queue, v)
		}
	}

	// Seed with every variable any arc currently watches; the scheduler only
	// calls Propagate when something relevant changed, so a full local
	// re-scan from impactedArcs tails is sound (if not maximally lazy).
	for v := range p.impactedArcs {
		push(v)
	}

	for i := 0; i < len(queue); i++ {
		v := queue[i]
		for _, idx := range p.impactedArcs[v] {
			a := p.arcs[idx]
			if a.Tail != v {
				continue
			}
			if !p.present(a) {
				continue
			}
			cand := p.candidate(a)
			if cand <= p.intTrail.LowerBound(a.Head) {
				continue
			}
			if p.disassembleReentersTail(a.Head, a.Tail, idx) {
				return p.reportCycle(idx)
			}
			p.parentArc[a.Head] = idx
			if !p.pushBound(a, cand) {
				return false
			}
			push(a.Head)
		}
	}

	return p.pruneInfeasiblePotentialArcs()
}

// pruneInfeasiblePotentialArcs implements §4.7 step 4: a still-potential
// arc that cannot possibly fit given current bounds has its presence
// literal propagated false.
func (p *PrecedencesPropagator) pruneInfeasiblePotentialArcs() bool {
	for _, idxs := range p.impactedPotentialArcs {
		for _, idx := range idxs {
			a := p.arcs[idx]
			offsetMax := a.Offset
			if a.OffsetVar != NoIntegerVariable {
				offsetMax = offsetMax.Add(p.intTrail.UpperBound(a.OffsetVar))
			}
			if p.intTrail.LowerBound(a.Tail).Add(offsetMax) > p.intTrail.UpperBound(a.Head) {
				if p.boolTrail.LitValue(a.PresenceLit) == sat.Unknown {
					_, bounds := p.reasonFor(a)
					merged := p.intTrail.MergeReasonInto(bounds, nil)
					idxBool := p.boolTrail.Index()
					if !p.boolTrail.Enqueue(a.PresenceLit.Negated(), p.providerID) {
						return false
					}
					p.presenceReason(idxBool, merged)
				}
			}
		}
	}
	return true
}

// presenceReason and ReasonFor below let the propagator itself answer
// Trail.Reason queries for the presence literals it propagates false,
// exactly like IntegerTrail does for its own associated literals.
var _ sat.ReasonProvider = (*PrecedencesPropagator)(nil)

func (p *PrecedencesPropagator) presenceReason(trailIdx int, reason []sat.Literal) {
	if p.reasonByIdx == nil {
		p.reasonByIdx = map[int][]sat.Literal{}
	}
	p.reasonByIdx[trailIdx] = reason
}

func (p *PrecedencesPropagator) ReasonFor(trailIndex int, lit sat.Literal) []sat.Literal {
	return p.reasonByIdx[trailIndex]
}

// Untrail pops activations recorded since the levels now being rolled back,
// restoring any arc that was activated in that span back to
// impactedPotentialArcs (§9 "Reverse enumeration of impacted_arcs on
// Untrail"), and invalidates parentArc for every variable whose bound was
// just reverted. The bound, not the presence literal, is what parentArc
// actually caches a derivation for: an unconditional arc's head has no
// presence literal to pop, but its bound is rolled back on every backtrack
// past the level that tightened it, so parentArc must be invalidated from
// revertedVars directly rather than only from popped presence literals.
func (p *PrecedencesPropagator) Untrail(popped []sat.Literal, revertedVars []IntegerVariable) {
	poppedSet := map[sat.Literal]bool{}
	for _, l := range popped {
		poppedSet[l] = true
	}
	kept := p.activations[:0]
	for _, act := range p.activations {
		if poppedSet[act.lit] {
			list := p.impactedArcs[act.tail]
			for i, idx := range list {
				if idx == act.index {
					p.impactedArcs[act.tail] = append(list[:i], list[i+1:]...)
					break
				}
			}
			p.impactedPotentialArcs[act.tail] = append(p.impactedPotentialArcs[act.tail], act.index)
			continue
		}
		kept = append(kept, act)
	}
	p.activations = kept

	for _, v := range revertedVars {
		if int(v) < len(p.parentArc) {
			p.parentArc[v] = -1
		}
	}
}
