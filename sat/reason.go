package sat

// ReasonProvider is implemented by anything that can enqueue literals onto
// the Trail and later explain why, on demand. The clause store and the
// binary implication graph are the two built-in providers; in package csp
// the IntegerTrail and the propagators that enqueue literals register
// themselves as additional providers using the same mechanism.
//
// ReasonFor must return a slice of literals that were all false at the
// moment trailIndex was assigned, and whose falsity entails lit. The trail
// caches a copy of the result on the variable it was asked about, and never
// calls this while lit is unassigned.
type ReasonProvider interface {
	ReasonFor(trailIndex int, lit Literal) []Literal
}

// reasonKind tags how a trail entry's reason must be recovered. Values >= 0
// are provider ids registered via Trail.RegisterReasonProvider; negative
// values are the well-known sentinels below.
type reasonKind int32

const (
	reasonUnit     reasonKind = -1 // EnqueueWithUnitReason: reason is empty
	reasonDecision reasonKind = -2 // EnqueueSearchDecision: reason is empty
	reasonSameAs   reasonKind = -3 // EnqueueWithSameReasonAs: reason is Reason(refVar)
	reasonCached   reasonKind = -4 // reason already computed, see cachedLits
)

// AssignmentInfo is the per-variable bookkeeping the Trail keeps while a
// variable is assigned. It is only meaningful for assigned variables; it is
// overwritten wholesale on the next Enqueue of the same variable, which is
// precisely what makes reason caching safe across backtracks: Untrail never
// has to invalidate a cache explicitly, it just stops reading this entry
// until the variable is assigned again.
type AssignmentInfo struct {
	level      int32
	trailIndex int32
	kind       reasonKind
	refVar     int32    // valid when kind == reasonSameAs
	original   reasonKind // valid when kind == reasonCached: the kind before caching
	cachedLits []Literal  // valid when kind == reasonCached
}

// Level returns the decision level at which the variable was assigned.
func (a AssignmentInfo) Level() int { return int(a.level) }

// TrailIndex returns the trail index at which the variable was assigned.
func (a AssignmentInfo) TrailIndex() int { return int(a.trailIndex) }

// IsDecision reports whether the variable was assigned by a search decision.
func (a AssignmentInfo) IsDecision() bool { return a.kind == reasonDecision }
