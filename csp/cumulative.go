package csp

import (
	"sort"

	"github.com/rhartert/lcg/sat"
	"github.com/rhartert/yagh"
)

// profileEvent is one mandatory-part boundary crossing used to sweep the
// demand profile (§4.8 step 1).
type profileEvent struct {
	t       IntegerValue
	delta   IntegerValue
	taskIdx int
}

// reorderTiesByTaskID makes the sweep deterministic when several tasks'
// mandatory parts start (or end) at the exact same instant: events already
// sorted by (time, start-before-end) are, within each such tied run,
// re-ordered by ascending task id via a yagh.IntMap rather than relying on
// sort.Slice's unspecified tie behavior.
func reorderTiesByTaskID(events []profileEvent) {
	i := 0
	for i < len(events) {
		j := i + 1
		for j < len(events) && events[j].t == events[i].t && sameSign(events[j].delta, events[i].delta) {
			j++
		}
		if j-i > 1 {
			order := yagh.New[int](j - i)
			order.GrowBy(j - i)
			for k := i; k < j; k++ {
				order.Put(k-i, events[k].taskIdx)
			}
			group := append([]profileEvent(nil), events[i:j]...)
			for k := i; k < j; k++ {
				item, ok := order.Pop()
				if !ok {
					break
				}
				events[k] = group[item.Elem]
			}
		}
		i = j
	}
}

func sameSign(a, b IntegerValue) bool {
	return (a > 0) == (b > 0)
}

// CumulativeTask is one interval competing for a shared-capacity resource
// (§4.8): it occupies [Start, Start+Duration) while present, consuming
// Demand units of capacity.
type CumulativeTask struct {
	Start, Duration, Demand IntegerVariable
	PresenceLit             sat.Literal // sat.NoLiteral if mandatory
}

// ProfileRectangle is one piece of a resource's demand profile: height
// units of demand occupy [Start, End) (§3 ProfileRectangle).
type ProfileRectangle struct {
	Start, End IntegerValue
	Height     IntegerValue
}

// CumulativePropagator enforces that, at every time point, the sum of
// demands of simultaneously-running present tasks never exceeds Capacity
// (§4.8), via mandatory-part sweep (timetabling) filtering.
type CumulativePropagator struct {
	boolTrail *sat.Trail
	intTrail  *IntegerTrail
	scheduler *Scheduler
	id        int32

	tasks    []CumulativeTask
	capacity IntegerVariable

	reasonByIdx map[int][]sat.Literal
	providerID  int32
}

// NewCumulativePropagator creates an empty propagator for the given
// capacity variable and registers it with scheduler.
func NewCumulativePropagator(boolTrail *sat.Trail, intTrail *IntegerTrail, scheduler *Scheduler, capacity IntegerVariable) *CumulativePropagator {
	p := &CumulativePropagator{
		boolTrail:   boolTrail,
		intTrail:    intTrail,
		scheduler:   scheduler,
		capacity:    capacity,
		reasonByIdx: map[int][]sat.Literal{},
	}
	p.id = scheduler.Register(p)
	p.providerID = boolTrail.RegisterReasonProvider(p)
	p.scheduler.WatchLowerBound(p.id, capacity)
	p.scheduler.WatchUpperBound(p.id, capacity)
	return p
}

// AddTask registers t and subscribes the propagator to every bound that
// affects its contribution to the profile.
func (p *CumulativePropagator) AddTask(t CumulativeTask) {
	p.tasks = append(p.tasks, t)
	for _, v := range []IntegerVariable{t.Start, t.Duration, t.Demand} {
		p.scheduler.WatchIntegerVariable(p.id, v)
	}
	if t.PresenceLit != sat.NoLiteral {
		p.scheduler.WatchLiteral(p.id, t.PresenceLit)
	}
}

func (p *CumulativePropagator) isPresent(t CumulativeTask) bool {
	return t.PresenceLit == sat.NoLiteral || p.boolTrail.LitValue(t.PresenceLit) == sat.True
}

func (p *CumulativePropagator) isAbsent(t CumulativeTask) bool {
	return t.PresenceLit != sat.NoLiteral && p.boolTrail.LitValue(t.PresenceLit) == sat.False
}

// endMin/startMax delimit a task's mandatory part [startMax, endMin).
func (p *CumulativePropagator) startMax(t CumulativeTask) IntegerValue {
	return p.intTrail.UpperBound(t.Start)
}

func (p *CumulativePropagator) endMin(t CumulativeTask) IntegerValue {
	return p.intTrail.LowerBound(t.Start).Add(p.intTrail.LowerBound(t.Duration))
}

// buildProfile sweeps the mandatory parts of every present task with
// non-zero duration and demand into a list of disjoint ProfileRectangles
// sorted by start (§4.8 steps 1-2), along with which tasks contribute to
// each rectangle (for explanation). Only rectangles of positive height are
// emitted, so time ranges with no mandatory part leave gaps.
func (p *CumulativePropagator) buildProfile() ([]ProfileRectangle, [][]int) {
	var events []profileEvent
	for i, t := range p.tasks {
		if !p.isPresent(t) {
			continue
		}
		sMax, eMin := p.startMax(t), p.endMin(t)
		demand := p.intTrail.LowerBound(t.Demand)
		if sMax >= eMin || demand <= 0 {
			continue
		}
		events = append(events, profileEvent{t: sMax, delta: demand, taskIdx: i})
		events = append(events, profileEvent{t: eMin, delta: -demand, taskIdx: i})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].t != events[j].t {
			return events[i].t < events[j].t
		}
		return events[i].delta > events[j].delta // process starts before ends at a tie
	})
	reorderTiesByTaskID(events)

	var rects []ProfileRectangle
	var contributors [][]int
	active := map[int]bool{}
	var height IntegerValue
	prev := IntegerValue(0)
	if len(events) > 0 {
		prev = events[0].t
	}
	i := 0
	for i < len(events) {
		t := events[i].t
		if t != prev && height > 0 {
			var c []int
			for idx := range active {
				c = append(c, idx)
			}
			sort.Ints(c)
			demands := make([]IntegerValue, len(c))
			for k, idx := range c {
				demands[k] = p.intTrail.LowerBound(p.tasks[idx].Demand)
			}
			rects = append(rects, ProfileRectangle{Start: prev, End: t, Height: saturatingSum(demands)})
			contributors = append(contributors, c)
		}
		for i < len(events) && events[i].t == t {
			if events[i].delta > 0 {
				active[events[i].taskIdx] = true
			} else {
				delete(active, events[i].taskIdx)
			}
			height += events[i].delta
			i++
		}
		prev = t
	}
	return rects, contributors
}

// Propagate implements §4.8: build the profile, raise the capacity's lower
// bound if it peaks too high, then sweep each task past any profile
// rectangle it cannot coexist with, repeating until the profile stops
// changing.
func (p *CumulativePropagator) Propagate() bool {
	for {
		rects, contributors := p.buildProfile()

		maxHeight := IntegerValue(0)
		peakRect := -1
		for i, r := range rects {
			if r.Height > maxHeight {
				maxHeight = r.Height
				peakRect = i
			}
		}

		capUB := p.intTrail.UpperBound(p.capacity)
		if maxHeight > capUB && peakRect >= 0 {
			lits, bounds := p.profileReason(contributors[peakRect])
			if !p.intTrail.Enqueue(GreaterOrEqual(p.capacity, maxHeight), lits, bounds) {
				return false
			}
		}

		changed := false
		for i := range p.tasks {
			t := p.tasks[i]
			if p.isAbsent(t) || p.intTrail.LowerBound(t.Duration) <= 0 {
				continue
			}
			demand := p.intTrail.LowerBound(t.Demand)
			if demand <= 0 {
				continue
			}
			available := p.availableWithout(i, rects, contributors)
			if demand <= available {
				continue
			}

			ok, moved := p.sweepLeft(i, rects, contributors)
			changed = changed || moved
			if !ok {
				return false
			}
			ok, moved = p.sweepRight(i, rects, contributors)
			changed = changed || moved
			if !ok {
				return false
			}
		}

		if !changed {
			return true
		}
	}
}

// availableWithout returns the minimum spare capacity across the profile,
// excluding task i's own contribution, i.e. C - (maxHeightWithoutI).
func (p *CumulativePropagator) availableWithout(i int, rects []ProfileRectangle, contributors [][]int) IntegerValue {
	capUB := p.intTrail.UpperBound(p.capacity)
	var without IntegerValue
	for ri, r := range rects {
		h := r.Height
		for _, c := range contributors[ri] {
			if c == i {
				h = h.Sub(p.intTrail.LowerBound(p.tasks[i].Demand))
				break
			}
		}
		if h > without {
			without = h
		}
	}
	return capUB.Sub(without)
}

// sweepLeft pushes task i's start past the end of any mandatory-part
// rectangle it cannot fit alongside, scanning left to right (§4.8 step 4).
func (p *CumulativePropagator) sweepLeft(i int, rects []ProfileRectangle, contributors [][]int) (ok bool, moved bool) {
	t := p.tasks[i]
	demand := p.intTrail.LowerBound(t.Demand)
	capUB := p.intTrail.UpperBound(p.capacity)

	cur := p.intTrail.LowerBound(t.Start)
	for ri, r := range rects {
		if r.End <= cur {
			continue
		}
		if r.Start >= cur.Add(p.intTrail.LowerBound(t.Duration)) {
			break
		}
		h := r.Height
		selfHere := false
		for _, c := range contributors[ri] {
			if c == i {
				selfHere = true
			}
		}
		if selfHere {
			h = h.Sub(demand)
		}
		if h.Add(demand) <= capUB {
			continue
		}
		newStart := r.End
		lits, bounds := p.taskSweepReason(i, contributors[ri])
		if t.PresenceLit != sat.NoLiteral && newStart.Add(p.intTrail.LowerBound(t.Duration)).Sub(1) > p.intTrail.UpperBound(t.Start).Add(p.intTrail.UpperBound(t.Duration)) {
			if p.boolTrail.LitValue(t.PresenceLit) == sat.Unknown {
				idx := p.boolTrail.Index()
				merged := p.intTrail.MergeReasonInto(bounds, lits)
				if !p.boolTrail.Enqueue(t.PresenceLit.Negated(), p.providerID) {
					return false, moved
				}
				p.reasonByIdx[idx] = merged
				return true, true
			}
		}
		if !p.intTrail.Enqueue(GreaterOrEqual(t.Start, newStart), lits, bounds) {
			return false, moved
		}
		moved = true
		cur = newStart
	}
	return true, moved
}

// sweepRight is sweepLeft's mirror, pushing task i's end (i.e. lowering its
// start's upper bound) leftward past rectangles near the end of its window.
func (p *CumulativePropagator) sweepRight(i int, rects []ProfileRectangle, contributors [][]int) (ok bool, moved bool) {
	t := p.tasks[i]
	demand := p.intTrail.LowerBound(t.Demand)
	capUB := p.intTrail.UpperBound(p.capacity)

	curEnd := p.intTrail.UpperBound(t.Start).Add(p.intTrail.UpperBound(t.Duration))
	for ri := len(rects) - 1; ri >= 0; ri-- {
		r := rects[ri]
		if r.Start >= curEnd {
			continue
		}
		if r.End <= curEnd.Sub(p.intTrail.LowerBound(t.Duration)) {
			break
		}
		h := r.Height
		for _, c := range contributors[ri] {
			if c == i {
				h = h.Sub(demand)
			}
		}
		if h.Add(demand) <= capUB {
			continue
		}
		newEndUB := r.Start
		newStartUB := newEndUB.Sub(p.intTrail.LowerBound(t.Duration))
		lits, bounds := p.taskSweepReason(i, contributors[ri])
		if !p.intTrail.Enqueue(LowerOrEqual(t.Start, newStartUB), lits, bounds) {
			return false, moved
		}
		moved = true
		curEnd = newEndUB
	}
	return true, moved
}

func (p *CumulativePropagator) profileReason(contributors []int) ([]sat.Literal, []IntegerLiteral) {
	var lits []sat.Literal
	var bounds []IntegerLiteral
	for _, idx := range contributors {
		t := p.tasks[idx]
		if t.PresenceLit != sat.NoLiteral {
			lits = append(lits, t.PresenceLit.Negated())
		}
		bounds = append(bounds,
			p.intTrail.UpperBoundAsLiteral(t.Start),
			p.intTrail.LowerBoundAsLiteral(t.Start),
			p.intTrail.LowerBoundAsLiteral(t.Duration),
			p.intTrail.LowerBoundAsLiteral(t.Demand),
		)
	}
	return lits, bounds
}

func (p *CumulativePropagator) taskSweepReason(taskIdx int, contributors []int) ([]sat.Literal, []IntegerLiteral) {
	lits, bounds := p.profileReason(contributors)
	t := p.tasks[taskIdx]
	bounds = append(bounds, p.intTrail.LowerBoundAsLiteral(t.Demand), p.intTrail.UpperBoundAsLiteral(p.capacity))
	return lits, bounds
}

func (p *CumulativePropagator) ReasonFor(trailIndex int, lit sat.Literal) []sat.Literal {
	return p.reasonByIdx[trailIndex]
}
