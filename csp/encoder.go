package csp

import (
	"sort"

	"github.com/rhartert/lcg/sat"
)

// boundLit is one entry of an IntegerEncoder's ordered bound -> literal map
// for a single IntegerVariable (§3 IntegerEncoder state).
type boundLit struct {
	bound IntegerValue
	lit   sat.Literal
}

// valueLit is one entry of a fully-encoded variable's ordered value list.
type valueLit struct {
	value IntegerValue
	lit   sat.Literal
}

// IntegerEncoder links IntegerTrail bound facts to sat.Engine literals,
// maintaining the order implications that make lazy clause generation sound
// (§4.4). Every associated literal it creates is a genuine Boolean variable
// of the underlying sat.Engine, so conflict analysis treats integer
// reasoning exactly like any other learned fact.
type IntegerEncoder struct {
	engine   *sat.Engine
	intTrail *IntegerTrail

	// assoc[v] is kept sorted ascending by bound.
	assoc map[IntegerVariable][]boundLit

	// fullyEncoded[v] is kept sorted ascending by value, nil if v was never
	// fully encoded.
	fullyEncoded map[IntegerVariable][]valueLit
}

// NewIntegerEncoder creates an encoder for the given engine/trail pair. The
// trail and encoder reference each other, so IntegerTrail.SetEncoder must be
// called once with the result.
func NewIntegerEncoder(engine *sat.Engine, intTrail *IntegerTrail) *IntegerEncoder {
	return &IntegerEncoder{
		engine:       engine,
		intTrail:     intTrail,
		assoc:        map[IntegerVariable][]boundLit{},
		fullyEncoded: map[IntegerVariable][]valueLit{},
	}
}

// ValuesOf returns variable v's fully-encoded value list (ascending by
// value), or nil if v has never been fully encoded.
func (e *IntegerEncoder) ValuesOf(v IntegerVariable) []valueLit {
	return e.fullyEncoded[v]
}

// FullyEncodeVariable creates one fresh Boolean per value in values (or
// reuses a single Boolean and its negation when exactly two values are
// given) and asserts that exactly one of them holds, via at-most-one binary
// clauses plus a single at-least-one clause. The encoding is mirrored onto
// NegationOf(v) with the value list reversed and negated (§4.4).
//
// Precondition: len(values) >= 2, strictly ascending, and v has not
// previously been fully encoded: any re-encoding panics, whatever its value
// set.
func (e *IntegerEncoder) FullyEncodeVariable(v IntegerVariable, values []IntegerValue) {
	if len(values) < 2 {
		panic("csp: FullyEncodeVariable requires at least two values")
	}
	if _, already := e.fullyEncoded[v]; already {
		panic("csp: variable already fully encoded")
	}

	lits := make([]sat.Literal, len(values))
	if len(values) == 2 {
		b := e.engine.AddVariable()
		lits[0] = sat.NegativeLiteral(b) // value == values[0]
		lits[1] = sat.PositiveLiteral(b) // value == values[1]
	} else {
		for i := range values {
			lits[i] = sat.PositiveLiteral(e.engine.AddVariable())
		}
		// At most one.
		for i := 0; i < len(lits); i++ {
			for j := i + 1; j < len(lits); j++ {
				e.engine.AddClause([]sat.Literal{lits[i].Negated(), lits[j].Negated()})
			}
		}
		// At least one.
		e.engine.AddClause(append([]sat.Literal(nil), lits...))
	}

	fwd := make([]valueLit, len(values))
	for i, val := range values {
		fwd[i] = valueLit{value: val, lit: lits[i]}
		e.tieValueToBounds(v, val, lits[i])
	}
	e.fullyEncoded[v] = fwd

	neg := v.NegationOf()
	rev := make([]valueLit, len(values))
	for i, val := range values {
		rev[len(values)-1-i] = valueLit{value: val.Negated(), lit: lits[i]}
	}
	e.fullyEncoded[neg] = rev
}

// tieValueToBounds equates a fully-encoded value literal to the conjunction
// "v >= val AND NOT v >= val+1", via the standard 3-clause AND-equivalence
// CNF encoding.
func (e *IntegerEncoder) tieValueToBounds(v IntegerVariable, val IntegerValue, valLit sat.Literal) {
	ge := e.GetOrCreateAssociatedLiteral(GreaterOrEqual(v, val))
	lt := e.GetOrCreateAssociatedLiteral(GreaterOrEqual(v, val.Add(1))).Negated()

	e.engine.AddClause([]sat.Literal{valLit.Negated(), ge})
	e.engine.AddClause([]sat.Literal{valLit.Negated(), lt})
	e.engine.AddClause([]sat.Literal{valLit, ge.Negated(), lt.Negated()})
}

// GetOrCreateAssociatedLiteral returns the Boolean literal associated with
// intLit (var >= bound), creating it (and its order implications with
// neighboring bounds already known for var) if absent (§4.4).
func (e *IntegerEncoder) GetOrCreateAssociatedLiteral(intLit IntegerLiteral) sat.Literal {
	v, k := intLit.Var, intLit.Bound
	list := e.assoc[v]

	i := sort.Search(len(list), func(i int) bool { return list[i].bound >= k })
	if i < len(list) && list[i].bound == k {
		return list[i].lit
	}

	lit := sat.PositiveLiteral(e.engine.AddVariable())

	if i < len(list) {
		// list[i].bound > k: "after" neighbor. literal(after) -> lit.
		e.engine.AddClause([]sat.Literal{list[i].lit.Negated(), lit})
	}
	if i > 0 {
		// list[i-1].bound < k: "before" neighbor. lit -> literal(before).
		e.engine.AddClause([]sat.Literal{lit.Negated(), list[i-1].lit})
	}

	list = append(list, boundLit{})
	copy(list[i+1:], list[i:])
	list[i] = boundLit{bound: k, lit: lit}
	e.assoc[v] = list

	return lit
}

// SearchForLiteralAtOrBefore returns the associated literal of the greatest
// bound <= k for v, or (sat.NoLiteral, false) if none has been created yet
// (§4.4).
func (e *IntegerEncoder) SearchForLiteralAtOrBefore(intLit IntegerLiteral) (sat.Literal, bool) {
	list := e.assoc[intLit.Var]
	i := sort.Search(len(list), func(i int) bool { return list[i].bound > intLit.Bound })
	if i == 0 {
		return sat.NoLiteral, false
	}
	return list[i-1].lit, true
}

// valuesCrossedBelow returns, for each fully-encoded value of v in
// [oldBound, newBound) whose literal is not already false, the negation of
// that value literal — values the new lower bound rules out. It also returns
// newBound moved past the run of consecutive encoded values, starting at
// newBound, whose literals are already false; a bound that falls strictly
// between two encoded values is not moved.
func (e *IntegerEncoder) valuesCrossedBelow(boolTrail *sat.Trail, v IntegerVariable, oldBound, newBound IntegerValue) (crossed []sat.Literal, strengthened IntegerValue) {
	values := e.fullyEncoded[v]
	if values == nil {
		return nil, newBound
	}
	strengthened = newBound
	for _, vl := range values {
		if vl.value < oldBound {
			continue
		}
		if vl.value >= newBound {
			if boolTrail.LitValue(vl.lit) == sat.False && vl.value == strengthened {
				strengthened = strengthened.Add(1)
			}
			continue
		}
		if boolTrail.LitValue(vl.lit) != sat.False {
			crossed = append(crossed, vl.lit.Negated())
		}
	}
	return crossed, strengthened
}
