package sat

import "fmt"

// Literal represents a Boolean literal: a variable or its negation. Variable
// v's positive literal is 2*v, its negative literal is 2*v+1, so that the
// two literals of a variable only differ in their lowest bit.
type Literal int32

// NoLiteral is the sentinel used where a literal field is optional (e.g. an
// arc or task with no presence condition).
const NoLiteral Literal = -1

// PositiveLiteral returns the positive literal of variable v.
func PositiveLiteral(v int) Literal {
	return Literal(v * 2)
}

// NegativeLiteral returns the negative literal of variable v.
func NegativeLiteral(v int) Literal {
	return Literal(v*2 + 1)
}

// VarID returns the id of the literal's variable.
func (l Literal) VarID() int {
	return int(l) / 2
}

// IsPositive returns true if l is the positive literal of its variable.
func (l Literal) IsPositive() bool {
	return l&1 == 0
}

// Negated returns the opposite literal. Negated(Negated(l)) == l always.
func (l Literal) Negated() Literal {
	return l ^ 1
}

func (l Literal) String() string {
	if l == NoLiteral {
		return "<none>"
	}
	if l.IsPositive() {
		return fmt.Sprintf("%d", l.VarID())
	}
	return fmt.Sprintf("!%d", l.VarID())
}
