// Package revision implements the monotonic revision counter and the
// per-durability "last changed" clock that the rest of the engine uses to
// shortcut validation.
package revision

import "sync/atomic"

// Revision is a monotonically-increasing tick, bumped once per input
// mutation. The zero value is never observed by ingredients: the clock
// starts at R1.
type Revision uint64

// R1 is the first revision a freshly-constructed database starts at.
const R1 Revision = 1

// Next returns the revision immediately following r.
func (r Revision) Next() Revision {
	return r + 1
}

// Durability classifies inputs by how often they change. It is used only
// to shortcut validation: a memo whose claimed durability is >= d is
// shallow-verified in O(1) whenever no input of durability >= d has changed
// since the memo was last verified.
type Durability uint8

const (
	Low Durability = iota
	Medium
	High

	durabilityCount = int(High) + 1
)

// Min returns the lower of two durabilities — used when a Derived memo's
// edges are folded into a single durability bound (§4.7.4: "min durability
// across inputs").
func Min(a, b Durability) Durability {
	if a < b {
		return a
	}
	return b
}

// Max returns the later of two revisions — used when a Derived memo's edges
// are folded into a tentative changed_at (§4.7.4: "max changed_at across
// inputs").
func Max(a, b Revision) Revision {
	if a > b {
		return a
	}
	return b
}

// Clock is the shared, process-local revision and durability state (C1).
// It is embedded once per database and shared (via reference) by every
// reader/writer Runtime cloned from that database.
type Clock struct {
	// current holds the current revision.
	current atomic.Uint64

	// lastChanged[d] is the most recent revision in which an input of
	// durability >= d last changed. lastChanged[Low] is the revision of the
	// most recent write of any durability, since every write bumps Low.
	lastChanged [durabilityCount]atomic.Uint64

	// cancelled is set by a writer about to obtain exclusive access and
	// cleared on every new revision.
	cancelled atomic.Bool
}

// NewClock returns a clock initialized to R1 with no changes recorded at
// any durability.
func NewClock() *Clock {
	c := &Clock{}
	c.current.Store(uint64(R1))
	for d := range c.lastChanged {
		c.lastChanged[d].Store(uint64(R1))
	}
	return c
}

// CurrentRevision returns the revision presently in effect.
func (c *Clock) CurrentRevision() Revision {
	return Revision(c.current.Load())
}

// LastChanged returns the most recent revision at which an input of
// durability >= d is known to have changed.
func (c *Clock) LastChanged(d Durability) Revision {
	return Revision(c.lastChanged[d].Load())
}

// ReportWrite bumps last-changed for every durability <= d to the current
// revision. Called after NewRevision during a `set`, per §4.1: "bumps the
// revision counter; sets last_changed[d] = new for every d <= durability".
func (c *Clock) ReportWrite(d Durability) {
	now := c.current.Load()
	for i := 0; i <= int(d); i++ {
		c.lastChanged[i].Store(now)
	}
}

// NewRevision advances the clock by one tick and clears the cancellation
// flag. Only reachable with exclusive (writer) access to the database, per
// spec.md §4.1 and §5.
func (c *Clock) NewRevision() Revision {
	next := c.current.Add(1)
	c.cancelled.Store(false)
	return Revision(next)
}

// SetCancelled raises the cancellation flag; queries executing in other
// threads observe it on their next unwind check.
func (c *Clock) SetCancelled() {
	c.cancelled.Store(true)
}

// Cancelled reports whether the cancellation flag is currently set.
func (c *Clock) Cancelled() bool {
	return c.cancelled.Load()
}
