package engine

import (
	"sync/atomic"

	"github.com/emberdb/ember/internal/revision"
	"github.com/emberdb/ember/internal/runtime"
)

// shared is the part of a Database every snapshot derived from it has in
// common: the ingredient registry, the event hook, and a count of
// outstanding reader snapshots.
//
// Rust's salsa enforces "no readers while &mut Database exists" at compile
// time via the borrow checker; Go has no equivalent, so this is enforced
// at runtime instead — NewRevision panics if any snapshot taken from this
// database has not yet been closed. This is recorded as a deliberate
// simplification, not a silent gap.
type shared struct {
	registry *Registry
	readers  atomic.Int64
	hook     atomic.Pointer[EventHook]
}

// Database is the façade every ingredient and every generated accessor
// executes against (C10, spec.md §4.10): one Runtime bound to the
// ingredient Registry that runtime's edges are checked against.
type Database struct {
	rt         *runtime.Runtime
	sh         *shared
	isSnapshot bool
}

// New constructs a fresh, empty database: a writer handle with no
// ingredients registered yet. Callers register ingredients via Registry()
// before first use.
func New() *Database {
	return &Database{rt: runtime.New(), sh: &shared{registry: NewRegistry()}}
}

// Runtime returns the runtime this database handle executes against.
func (db *Database) Runtime() *runtime.Runtime { return db.rt }

// Registry returns the ingredient registry shared by every handle derived
// from this database.
func (db *Database) Registry() *Registry { return db.sh.registry }

// SetEventHook installs the observer invoked for every Event (spec.md §6).
// A nil hook disables observation.
func (db *Database) SetEventHook(h EventHook) {
	if h == nil {
		db.sh.hook.Store(nil)
		return
	}
	db.sh.hook.Store(&h)
}

// Emit invokes the installed event hook, if any.
func (db *Database) Emit(ev Event) {
	if hook := db.sh.hook.Load(); hook != nil {
		(*hook)(ev)
	}
}

// Snapshot produces an independent reader handle sharing this database's
// registry and runtime state, forbidden while a query is in progress on
// the calling handle (spec.md §4.10). The returned handle must be closed
// with Close when the reader thread is done with it, so a later
// NewRevision on the writer is not blocked forever by a leaked snapshot.
func (db *Database) Snapshot() *Database {
	snap := db.rt.Snapshot()
	db.sh.readers.Add(1)
	return &Database{rt: snap, sh: db.sh, isSnapshot: true}
}

// Close releases a reader snapshot obtained from Snapshot. Calling it on
// the writer handle, or more than once on the same snapshot, is a logic
// error.
func (db *Database) Close() {
	if !db.isSnapshot {
		LogicError("Close called on the writer database handle, not a snapshot")
	}
	db.sh.readers.Add(-1)
}

// NewRevision advances the clock and resets every ingredient that opted
// into per-revision bookkeeping (spec.md §4.1, §4.3). Only the writer
// handle may call it, and only once every snapshot taken from it has been
// closed.
func (db *Database) NewRevision() revision.Revision {
	if db.isSnapshot {
		LogicError("NewRevision called on a reader snapshot; only the writer may advance the revision")
	}
	if n := db.sh.readers.Load(); n > 0 {
		LogicError("NewRevision called with %d reader snapshot(s) still outstanding", n)
	}
	rev := db.rt.NewRevision()
	db.sh.registry.ResetForNewRevision(rev)
	return rev
}
