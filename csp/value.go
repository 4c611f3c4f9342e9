// Package csp implements the lazy-clause-generation integer layer that sits
// on top of package sat: integer variables encoded onto Boolean literals, a
// bound-tightening trail with reason-DAG dependencies, a generic propagator
// scheduler, and two representative propagators (precedences and
// cumulative/timetabling).
package csp

import "golang.org/x/exp/constraints"

// IntegerValue is a saturating, bounded signed integer (§3 IntegerValue).
// Arithmetic never panics or wraps: an operation that would leave the usable
// range [MinValue, MaxValue] instead clamps to one past that range, which a
// subsequent bound comparison detects as a crossed (inconsistent) domain —
// this is how integer overflow is turned into an ordinary conflict instead
// of requiring an explicit check at every call site (§7, §9 "Saturating
// arithmetic").
type IntegerValue int64

const (
	// MaxValue is the largest representable IntegerValue. One slot above it,
	// PlusInfinity, exists purely as a saturation target.
	MaxValue = IntegerValue(1 << 62)
	// MinValue is the smallest representable IntegerValue.
	MinValue = -MaxValue

	// PlusInfinity and MinusInfinity are out-of-range sentinels: any bound
	// comparison against them is unsatisfiable, which is exactly what
	// saturating arithmetic needs for overflow to present as a conflict.
	PlusInfinity  = MaxValue + 1
	MinusInfinity = MinValue - 1
)

// clampWide pulls an int64 result back into the saturating range, rounding
// anything outside it to the nearest infinity.
func clampWide(w int64) IntegerValue {
	if w > int64(MaxValue) {
		return PlusInfinity
	}
	if w < int64(MinValue) {
		return MinusInfinity
	}
	return IntegerValue(w)
}

// Add returns a saturating sum: an overflow past MaxValue/MinValue saturates
// to PlusInfinity/MinusInfinity rather than wrapping.
func (v IntegerValue) Add(other IntegerValue) IntegerValue {
	s := int64(v) + int64(other)
	if other > 0 && s < int64(v) {
		return PlusInfinity // int64 overflow
	}
	if other < 0 && s > int64(v) {
		return MinusInfinity
	}
	return clampWide(s)
}

// Sub returns a saturating difference.
func (v IntegerValue) Sub(other IntegerValue) IntegerValue {
	d := int64(v) - int64(other)
	if other < 0 && d < int64(v) {
		return PlusInfinity // int64 overflow
	}
	if other > 0 && d > int64(v) {
		return MinusInfinity
	}
	return clampWide(d)
}

// Negated returns -v, saturating at the range boundary (so that
// MinusInfinity negates to PlusInfinity and vice versa).
func (v IntegerValue) Negated() IntegerValue {
	return clampWide(-int64(v))
}

// InRange reports whether v is within the usable [MinValue, MaxValue] range;
// false means v is an overflow/infinity sentinel.
func (v IntegerValue) InRange() bool {
	return v >= MinValue && v <= MaxValue
}

func min(a, b IntegerValue) IntegerValue {
	if a < b {
		return a
	}
	return b
}

func max(a, b IntegerValue) IntegerValue {
	if a > b {
		return a
	}
	return b
}

// saturatingSum adds a generic ordered numeric sequence using the same
// clamp-to-range discipline as IntegerValue.Add, for callers (e.g. the
// cumulative propagator) that accumulate several demands at once rather than
// folding them in one at a time with Add.
func saturatingSum[T constraints.Integer](values []T) IntegerValue {
	var total IntegerValue
	for _, v := range values {
		total = total.Add(IntegerValue(v))
	}
	return total
}
