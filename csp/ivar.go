package csp

import "fmt"

// IntegerVariable is an index into the IntegerTrail's bound storage. Integer
// variables are always created in pairs: v and NegationOf(v) = v XOR 1.
// Internally only a lower bound is stored per index — the upper bound of v
// is -(lower bound of NegationOf(v)) (§3 IntegerVariable).
type IntegerVariable int32

// NoIntegerVariable is the sentinel "not an integer variable" value, used by
// ArcInfo.OffsetVar when an arc carries a constant offset only.
const NoIntegerVariable IntegerVariable = -1

// NegationOf returns the paired variable representing -v.
func (v IntegerVariable) NegationOf() IntegerVariable { return v ^ 1 }

func (v IntegerVariable) String() string { return fmt.Sprintf("x%d", int32(v)) }

// IntegerLiteral is a pair (var, bound) meaning var >= bound (§3
// IntegerLiteral). Negated(v, b) = (NegationOf(v), 1-b) since "v >= b" is
// false exactly when "-v >= 1-b", i.e. when v's negation's lower bound
// reaches 1-b.
type IntegerLiteral struct {
	Var   IntegerVariable
	Bound IntegerValue
}

// NoIntegerLiteral is the sentinel meaning "always true" / "no literal".
var NoIntegerLiteral = IntegerLiteral{Var: NoIntegerVariable}

// IsNone reports whether l is the sentinel "no literal".
func (l IntegerLiteral) IsNone() bool { return l.Var == NoIntegerVariable }

// Negated returns the integer literal equivalent to ¬(var >= bound), i.e.
// var <= bound-1, expressed as a lower bound on the negated variable.
func (l IntegerLiteral) Negated() IntegerLiteral {
	return IntegerLiteral{Var: l.Var.NegationOf(), Bound: 1 - l.Bound}
}

func (l IntegerLiteral) String() string {
	return fmt.Sprintf("[%s >= %d]", l.Var, l.Bound)
}

// GreaterOrEqual builds the literal (var >= bound).
func GreaterOrEqual(v IntegerVariable, bound IntegerValue) IntegerLiteral {
	return IntegerLiteral{Var: v, Bound: bound}
}

// LowerOrEqual builds the literal (var <= bound), expressed internally as
// (NegationOf(var) >= -bound).
func LowerOrEqual(v IntegerVariable, bound IntegerValue) IntegerLiteral {
	return IntegerLiteral{Var: v.NegationOf(), Bound: bound.Negated()}
}
