package csp

import (
	"sort"

	"github.com/rhartert/lcg/sat"
)

// trailEntry is one bound tightening recorded by the IntegerTrail (§3
// IntegerTrail state). The first two entries created for each variable pair
// are root sentinels with prevIndex == -1.
type trailEntry struct {
	bound IntegerValue
	v     IntegerVariable
	level int32
	prevIndex int32

	litReasonStart, litReasonEnd int32
	depStart, depEnd             int32
}

type varState struct {
	bound      IntegerValue
	trailIndex int32
}

// IntegerTrail is the bound-tightening half of the engine (§4.5): a stack of
// per-variable lower-bound entries, cross-referenced to the Boolean
// sat.Trail both by pushing an associated Boolean literal for a bound change
// whenever the encoder has one at or below the new bound, and by serving as a ReasonProvider so that literal's Reason()
// expands back into the integer reasoning that produced it.
type IntegerTrail struct {
	boolTrail *sat.Trail
	encoder   *IntegerEncoder
	providerID int32

	vars  []varState
	trail []trailEntry

	litReasonBuf []sat.Literal
	depBuf       []int32

	presenceLit []sat.Literal // NoLiteral if mandatory

	levelStart []int32 // trail index at which each decision level > 0 began

	// extraReason holds the literal-reason for a Boolean literal this trail
	// enqueued directly (not via EnqueueWithSameReasonAs), keyed by that
	// literal's sat.Trail index.
	extraReason map[int]([]sat.Literal)

	// modified accumulates variables whose lower bound changed since the
	// last DrainModified, for the scheduler's "modified_vars bitset" (§4.6).
	modified []IntegerVariable

	tmpReason []sat.Literal
}

// DrainModified returns (and clears) the set of variables whose lower bound
// has changed since the last call.
func (t *IntegerTrail) DrainModified() []IntegerVariable {
	m := t.modified
	t.modified = nil
	return m
}

// NewIntegerTrail creates an empty integer trail attached to boolTrail.
func NewIntegerTrail(boolTrail *sat.Trail) *IntegerTrail {
	t := &IntegerTrail{
		boolTrail:   boolTrail,
		extraReason: map[int][]sat.Literal{},
	}
	t.providerID = boolTrail.RegisterReasonProvider(t)
	return t
}

// SetEncoder links the trail to the encoder used to push associated
// Boolean literals on bound changes. Without an encoder, Enqueue records
// bound changes only and pushes no Boolean literal for them.
func (t *IntegerTrail) SetEncoder(e *IntegerEncoder) { t.encoder = e }

// AddIntegerVariable allocates a variable pair (v, NegationOf(v)) with
// initial bounds [lb, ub]. Root-level only (§4.5).
func (t *IntegerTrail) AddIntegerVariable(lb, ub IntegerValue) IntegerVariable {
	if t.boolTrail.DecisionLevel() != 0 {
		panic("csp: AddIntegerVariable called above the root decision level")
	}
	v := IntegerVariable(len(t.vars))
	neg := v + 1

	idxV := int32(len(t.trail))
	t.trail = append(t.trail, trailEntry{bound: lb, v: v, prevIndex: -1, level: 0,
		litReasonStart: int32(len(t.litReasonBuf)), litReasonEnd: int32(len(t.litReasonBuf)),
		depStart: int32(len(t.depBuf)), depEnd: int32(len(t.depBuf))})
	idxNeg := int32(len(t.trail))
	t.trail = append(t.trail, trailEntry{bound: ub.Negated(), v: neg, prevIndex: -1, level: 0,
		litReasonStart: int32(len(t.litReasonBuf)), litReasonEnd: int32(len(t.litReasonBuf)),
		depStart: int32(len(t.depBuf)), depEnd: int32(len(t.depBuf))})

	t.vars = append(t.vars, varState{bound: lb, trailIndex: idxV}, varState{bound: ub.Negated(), trailIndex: idxNeg})
	t.presenceLit = append(t.presenceLit, sat.NoLiteral, sat.NoLiteral)

	return v
}

// MarkIntegerVariableAsOptional records presenceLit as the literal that
// must be true for v (and its negation) to have a non-empty domain (§3
// "is_empty_literal").
func (t *IntegerTrail) MarkIntegerVariableAsOptional(v IntegerVariable, presenceLit sat.Literal) {
	t.presenceLit[v] = presenceLit
	t.presenceLit[v.NegationOf()] = presenceLit
}

func (t *IntegerTrail) isOptional(v IntegerVariable) bool { return t.presenceLit[v] != sat.NoLiteral }

// LowerBound returns the current lower bound of v.
func (t *IntegerTrail) LowerBound(v IntegerVariable) IntegerValue { return t.vars[v].bound }

// UpperBound returns the current upper bound of v, stored as -(lower bound
// of NegationOf(v)).
func (t *IntegerTrail) UpperBound(v IntegerVariable) IntegerValue {
	return t.vars[v.NegationOf()].bound.Negated()
}

// LowerBoundAsLiteral returns (v >= LowerBound(v)).
func (t *IntegerTrail) LowerBoundAsLiteral(v IntegerVariable) IntegerLiteral {
	return GreaterOrEqual(v, t.LowerBound(v))
}

// UpperBoundAsLiteral returns (v <= UpperBound(v)), i.e. the lower-bound
// literal of v's negation.
func (t *IntegerTrail) UpperBoundAsLiteral(v IntegerVariable) IntegerLiteral {
	return t.LowerBoundAsLiteral(v.NegationOf())
}

// Enqueue tightens var's lower bound to at least lit.Bound, recording
// literalReason and boundReason as the justification (§4.5). Returns false
// (with a conflict latched on boolTrail) if the new bound crosses the
// current upper bound of a non-optional variable.
func (t *IntegerTrail) Enqueue(lit IntegerLiteral, literalReason []sat.Literal, boundReason []IntegerLiteral) bool {
	v := lit.Var
	if lit.Bound <= t.vars[v].bound {
		return true
	}

	newBound := lit.Bound
	oldBound := t.vars[v].bound

	var crossedFalse []sat.Literal
	if t.encoder != nil {
		crossedFalse, newBound = t.encoder.valuesCrossedBelow(t.boolTrail, v, oldBound, newBound)
	}

	ub := t.UpperBound(v)
	if newBound > ub {
		if !t.isOptional(v) {
			merged := append([]sat.Literal(nil), literalReason...)
			merged = t.MergeReasonInto(boundReason, merged)
			if t.encoder != nil {
				if lb, ok := t.encoder.SearchForLiteralAtOrBefore(t.UpperBoundAsLiteral(v).Negated()); ok {
					merged = append(merged, lb)
				}
			}
			conflict := t.boolTrail.MutableConflict()
			*conflict = append((*conflict)[:0], merged...)
			return false
		}
		presence := t.presenceLit[v]
		if t.boolTrail.LitValue(presence) == sat.Unknown {
			merged := append([]sat.Literal(nil), literalReason...)
			merged = t.MergeReasonInto(boundReason, merged)
			idx := t.boolTrail.Index()
			if !t.boolTrail.Enqueue(presence.Negated(), t.providerID) {
				return false
			}
			t.extraReason[idx] = merged
		}
		return true
	}

	// Push the new bound-tightening entry.
	merged := append([]sat.Literal(nil), literalReason...)
	merged = t.MergeReasonInto(boundReason, merged)

	idx := int32(len(t.trail))
	e := trailEntry{
		bound:          newBound,
		v:              v,
		level:          int32(t.boolTrail.DecisionLevel()),
		prevIndex:      t.vars[v].trailIndex,
		litReasonStart: int32(len(t.litReasonBuf)),
		depStart:       int32(len(t.depBuf)),
	}
	t.litReasonBuf = append(t.litReasonBuf, merged...)
	e.litReasonEnd = int32(len(t.litReasonBuf))
	for _, bl := range boundReason {
		if di := t.FindLowestTrailIndexThatExplainBound(bl); di >= 0 {
			t.depBuf = append(t.depBuf, di)
		}
	}
	e.depEnd = int32(len(t.depBuf))

	t.trail = append(t.trail, e)
	t.vars[v] = varState{bound: newBound, trailIndex: idx}
	t.modified = append(t.modified, v)

	// Enqueue the strongest existing associated Boolean literal implied by
	// the new bound, if the encoder has one, with its reason deferring to
	// this IntegerTrail entry.
	if t.encoder != nil {
		if assocLit, ok := t.encoder.SearchForLiteralAtOrBefore(GreaterOrEqual(v, newBound)); ok {
			if t.boolTrail.LitValue(assocLit) == sat.Unknown {
				boolIdx := t.boolTrail.Index()
				if !t.boolTrail.Enqueue(assocLit, t.providerID) {
					return false
				}
				t.extraReason[boolIdx] = append([]sat.Literal(nil), merged...)
			}
			for _, cf := range crossedFalse {
				if t.boolTrail.LitValue(cf) == sat.Unknown {
					if !t.boolTrail.EnqueueWithSameReasonAs(cf, assocLit.VarID()) {
						return false
					}
				}
			}
		} else {
			for _, cf := range crossedFalse {
				if t.boolTrail.LitValue(cf) == sat.Unknown {
					boolIdx := t.boolTrail.Index()
					if !t.boolTrail.Enqueue(cf, t.providerID) {
						return false
					}
					t.extraReason[boolIdx] = append([]sat.Literal(nil), merged...)
				}
			}
		}
	}

	return true
}

// FindLowestTrailIndexThatExplainBound walks the prevIndex chain of
// intLit.Var back to the earliest entry whose bound is still >=
// intLit.Bound. Returns -1 if the literal is already true at the root
// (§4.5).
func (t *IntegerTrail) FindLowestTrailIndexThatExplainBound(intLit IntegerLiteral) int32 {
	cur := t.vars[intLit.Var].trailIndex
	if t.trail[cur].bound < intLit.Bound {
		return -1 // not actually implied; defensive, should not happen
	}
	for {
		e := t.trail[cur]
		if e.prevIndex < 0 {
			break
		}
		if t.trail[e.prevIndex].bound >= intLit.Bound {
			cur = e.prevIndex
		} else {
			break
		}
	}
	if t.trail[cur].level == 0 {
		return -1
	}
	return cur
}

// MergeReasonInto expands boundReason (a set of integer-bound facts a
// propagator relied on) into plain Boolean literals, appending them to out,
// and returns the combined, sorted, deduplicated slice (§4.5).
func (t *IntegerTrail) MergeReasonInto(boundReason []IntegerLiteral, out []sat.Literal) []sat.Literal {
	bestExplained := map[IntegerVariable]int32{}
	var stack []int32

	push := func(il IntegerLiteral) {
		idx := t.FindLowestTrailIndexThatExplainBound(il)
		if idx < 0 {
			return
		}
		if best, ok := bestExplained[il.Var]; ok && best >= idx {
			return
		}
		bestExplained[il.Var] = idx
		stack = append(stack, idx)
	}
	for _, bl := range boundReason {
		push(bl)
	}

	visited := map[int32]bool{}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[idx] {
			continue
		}
		visited[idx] = true

		e := t.trail[idx]
		out = append(out, t.litReasonBuf[e.litReasonStart:e.litReasonEnd]...)
		for _, depIdx := range t.depBuf[e.depStart:e.depEnd] {
			dv := t.trail[depIdx].v
			if best, ok := bestExplained[dv]; ok && best >= depIdx {
				continue
			}
			bestExplained[dv] = depIdx
			stack = append(stack, depIdx)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	k := 0
	for i, l := range out {
		if i == 0 || l != out[i-1] {
			out[k] = l
			k++
		}
	}
	return out[:k]
}

// ReasonFor implements sat.ReasonProvider for Boolean literals this trail
// enqueued directly (associated bound literals and is-absent literals).
func (t *IntegerTrail) ReasonFor(trailIndex int, lit sat.Literal) []sat.Literal {
	t.tmpReason = append(t.tmpReason[:0], t.extraReason[trailIndex]...)
	return t.tmpReason
}

// Untrail restores every variable's bound and trailIndex to its state at
// the end of decision level `level` (removing every entry of level+1 and
// above), truncates the reason buffers to match, and returns the
// distinct variables whose bound was rolled back, so that a propagator
// caching per-variable state derived from a bound (e.g. the precedences
// propagator's parentArc) can invalidate exactly what changed (§4.5, §9
// "Reverse enumeration of impacted_arcs on Untrail").
func (t *IntegerTrail) Untrail(level int) []IntegerVariable {
	if level >= len(t.levelStart) {
		return nil
	}
	boundary := t.levelStart[level]

	var reverted []IntegerVariable
	seen := map[IntegerVariable]bool{}
	for idx := int32(len(t.trail)) - 1; idx >= boundary; idx-- {
		e := t.trail[idx]
		prev := e.prevIndex
		t.vars[e.v] = varState{bound: t.trail[prev].bound, trailIndex: prev}
		if !seen[e.v] {
			seen[e.v] = true
			reverted = append(reverted, e.v)
		}
	}

	t.trail = t.trail[:boundary]
	if boundary > 0 {
		last := t.trail[boundary-1]
		t.litReasonBuf = t.litReasonBuf[:last.litReasonEnd]
		t.depBuf = t.depBuf[:last.depEnd]
	} else {
		t.litReasonBuf = t.litReasonBuf[:0]
		t.depBuf = t.depBuf[:0]
	}
	t.levelStart = t.levelStart[:level]
	return reverted
}

// NewDecisionLevel records the current trail length as the start of a new
// decision level, mirroring sat.Trail.NewDecisionLevel. Must be called by
// the same code path that bumps the Boolean trail's decision level.
func (t *IntegerTrail) NewDecisionLevel() {
	t.levelStart = append(t.levelStart, int32(len(t.trail)))
}
