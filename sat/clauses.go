package sat

import "strings"

// ClauseID is a stable reference to a clause held in a ClauseStore's arena.
// Watcher entries carry ClauseIDs rather than raw pointers so that the arena
// can grow, and reuse slots freed by LazyDetach, without chasing down every
// watcher.
type ClauseID int32

const noClause ClauseID = -1

type clauseStatus uint8

const (
	statusDeleted   clauseStatus = 0b001
	statusLearnt    clauseStatus = 0b010
	statusProtected clauseStatus = 0b100
)

// Clause is an n-ary (n >= 2) disjunction of literals. Positions 0 and 1 are
// the two watched literals; the invariant while attached is that at least
// one of them is non-false, or a unit propagation assigning one of them has
// already been enqueued (§3 SatClause).
type Clause struct {
	literals []Literal

	activity float64
	lbd      uint32

	// prevPos remembers where the last search for a new watched literal left
	// off, so PropagateOnFalse need not rescan from position 2 every time.
	// Always in [2, len(literals)] or invalid (>= len(literals), meaning
	// "restart from 2").
	prevPos int32

	status clauseStatus
}

func (c *Clause) isLearnt() bool    { return c.status&statusLearnt != 0 }
func (c *Clause) isDeleted() bool   { return c.status&statusDeleted != 0 }
func (c *Clause) isProtected() bool { return c.status&statusProtected != 0 }
func (c *Clause) setProtected()     { c.status |= statusProtected }
func (c *Clause) setUnprotected()   { c.status &^= statusProtected }

// Size returns the number of literals still in the clause.
func (c *Clause) Size() int { return len(c.literals) }

// Literals returns the clause's current literals. Callers must not retain or
// mutate the returned slice across a Simplify/Delete call.
func (c *Clause) Literals() []Literal { return c.literals }

// Activity and LBD (literal block distance) are learned-clause quality
// metrics; they are meaningless (and unused) on problem clauses.
func (c *Clause) Activity() float64 { return c.activity }
func (c *Clause) LBD() uint32       { return c.lbd }
func (c *Clause) SetLBD(lbd uint32) { c.lbd = lbd }

// simplify drops every literal known false and reports whether the clause
// is now known true (in which case it can be discarded by the caller). Only
// meaningful at decision level 0.
func (c *Clause) simplify(trail *Trail) bool {
	k := 0
	for _, lit := range c.literals {
		switch trail.LitValue(lit) {
		case True:
			return true
		case False:
			// drop
		default:
			c.literals[k] = lit
			k++
		}
	}
	c.literals = c.literals[:k]
	return false
}

// explainConflict reports the reason for this clause being falsified: every
// one of its literals, which (§4.1 Reason convention) are by definition all
// false when the clause conflicts.
func (c *Clause) explainConflict(out *[]Literal) {
	*out = append((*out)[:0], c.literals...)
}

// explainAssign reports the reason for this clause having propagated
// literals[0]: the clause's remaining literals, all of which are false
// (that is what made literals[0] unit).
func (c *Clause) explainAssign(out *[]Literal) {
	*out = append((*out)[:0], c.literals[1:]...)
}

func (c *Clause) String() string {
	if len(c.literals) == 0 {
		return "Clause[]"
	}
	sb := strings.Builder{}
	sb.WriteString("Clause[")
	sb.WriteString(c.literals[0].String())
	for _, l := range c.literals[1:] {
		sb.WriteByte(' ')
		sb.WriteString(l.String())
	}
	sb.WriteByte(']')
	return sb.String()
}
