package csp

import "github.com/rhartert/lcg/sat"

// Propagator is the contract every CP-level constraint implements (§4.6,
// §6 "To propagator authors"). Propagate is called whenever something the
// propagator watched changed; it must run to its own fixpoint and return
// false (after filling the engine's conflict) if it detects an
// inconsistency. A propagator is assumed idempotent: the scheduler never
// re-queues it within one fixpoint cycle unless a new watched change
// occurred after its last run.
type Propagator interface {
	Propagate() bool
}

// Untrailer is implemented by propagators that keep their own append-only
// side-state keyed off trail positions (the PrecedencesPropagator's
// impacted-arc logs and parentArc cache, per §9 "Reverse enumeration of
// impacted_arcs on Untrail"). The scheduler calls Untrail after rolling back
// the Boolean and integer trails, passing both the literals popped by the
// Boolean rollback and the integer variables whose bound was just reverted.
type Untrailer interface {
	Untrail(popped []sat.Literal, revertedVars []IntegerVariable)
}

// Scheduler is the generic propagator fixpoint loop (§4.6): it registers
// propagators, subscribes them to literal and integer-bound changes, and
// drains sat-level propagation before waking any CP propagator so that a
// full fixpoint on integer bounds is always reached before control returns
// to branching.
type Scheduler struct {
	engine   *sat.Engine
	intTrail *IntegerTrail

	propagators []Propagator

	literalWatch map[sat.Literal][]int32
	lbWatch      map[IntegerVariable][]int32

	queue  *sat.Queue[int32]
	queued []bool

	nextBoolIdx int
}

// NewScheduler creates a scheduler over engine and intTrail.
func NewScheduler(engine *sat.Engine, intTrail *IntegerTrail) *Scheduler {
	return &Scheduler{
		engine:       engine,
		intTrail:     intTrail,
		literalWatch: map[sat.Literal][]int32{},
		lbWatch:      map[IntegerVariable][]int32{},
		queue:        sat.NewQueue[int32](64),
	}
}

// Register adds p to the scheduler and returns its propagator id, to be
// used with WatchLiteral/WatchLowerBound/WatchUpperBound/
// WatchIntegerVariable.
func (s *Scheduler) Register(p Propagator) int32 {
	id := int32(len(s.propagators))
	s.propagators = append(s.propagators, p)
	s.queued = append(s.queued, false)
	return id
}

// WatchLiteral wakes propagator id whenever lit becomes true.
func (s *Scheduler) WatchLiteral(id int32, lit sat.Literal) {
	s.literalWatch[lit] = append(s.literalWatch[lit], id)
}

// WatchLowerBound wakes propagator id whenever v's lower bound increases.
func (s *Scheduler) WatchLowerBound(id int32, v IntegerVariable) {
	s.lbWatch[v] = append(s.lbWatch[v], id)
}

// WatchUpperBound wakes propagator id whenever v's upper bound decreases,
// i.e. whenever the lower bound of v's negation increases.
func (s *Scheduler) WatchUpperBound(id int32, v IntegerVariable) {
	s.WatchLowerBound(id, v.NegationOf())
}

// WatchIntegerVariable wakes propagator id on either bound of v moving.
func (s *Scheduler) WatchIntegerVariable(id int32, v IntegerVariable) {
	s.WatchLowerBound(id, v)
	s.WatchUpperBound(id, v)
}

func (s *Scheduler) enqueueID(id int32) {
	if !s.queued[id] {
		s.queued[id] = true
		s.queue.Push(id)
	}
}

// Propagate drains the sat.Engine to a Boolean fixpoint, then repeatedly
// wakes and runs watched CP propagators until nothing changes (§4.6 steps
// 1-4). Returns false if any layer detects a conflict.
func (s *Scheduler) Propagate() bool {
	for {
		if !s.engine.Propagate() {
			return false
		}

		trail := s.engine.Trail
		end := trail.Index()
		for i := s.nextBoolIdx; i < end; i++ {
			lit := trail.Literal(i)
			for _, id := range s.literalWatch[lit] {
				s.enqueueID(id)
			}
		}
		s.nextBoolIdx = end

		for _, v := range s.intTrail.DrainModified() {
			for _, id := range s.lbWatch[v] {
				s.enqueueID(id)
			}
		}

		if s.queue.Size() == 0 {
			return true
		}

		for s.queue.Size() > 0 {
			id := s.queue.Pop()
			s.queued[id] = false
			if !s.propagators[id].Propagate() {
				return false
			}
		}
		// Loop again: propagators above may have made new sat-level or
		// integer-bound changes that still need draining.
	}
}

// Backtrack rolls the Boolean trail, the integer trail, and every
// registered Untrailer back to level, and resets the scheduler's own
// cursors and pending queue, discarding bound changes not yet dispatched.
func (s *Scheduler) Backtrack(level int) {
	popped := s.engine.Backtrack(level)
	revertedVars := s.intTrail.Untrail(level)
	s.intTrail.DrainModified()

	for s.queue.Size() > 0 {
		id := s.queue.Pop()
		s.queued[id] = false
	}
	s.nextBoolIdx = s.engine.Trail.Index()

	for _, p := range s.propagators {
		if u, ok := p.(Untrailer); ok {
			u.Untrail(popped, revertedVars)
		}
	}
}

// NewDecisionLevel bumps both trails' decision level together and asserts
// lit as a search decision.
func (s *Scheduler) NewDecisionLevel(lit sat.Literal) bool {
	s.engine.Trail.NewDecisionLevel()
	s.intTrail.NewDecisionLevel()
	return s.engine.Trail.EnqueueSearchDecision(lit)
}
