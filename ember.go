// Package ember is a minimal public API for host programs that build an
// incremental, on-demand memoizing query database out of the engine's
// ingredient kinds.
//
// Most host databases need only this package plus internal/input,
// internal/interned, internal/trackedstruct, internal/function, and
// internal/accumulator to declare their ingredients; this package re-exports
// the handful of engine types every one of those needs to talk to a
// Database. For a worked example, see internal/demo.
package ember

import (
	"github.com/emberdb/ember/internal/config"
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/revision"
)

// Core engine types re-exported for host programs.
type (
	Database   = engine.Database
	Registry   = engine.Registry
	Event      = engine.Event
	EventKind  = engine.EventKind
	EventHook  = engine.EventHook
	Id         = ids.Id
	Revision   = revision.Revision
	Durability = revision.Durability
)

// Durability levels (spec.md §4.1).
const (
	Low    = revision.Low
	Medium = revision.Medium
	High   = revision.High
)

// Event kinds observable through SetEventHook (spec.md §6).
const (
	WillExecute              = engine.WillExecute
	WillCheckCancellation    = engine.WillCheckCancellation
	WillBlockOn              = engine.WillBlockOn
	DidValidateMemoizedValue = engine.DidValidateMemoizedValue
	WillDiscardStaleOutput   = engine.WillDiscardStaleOutput
	DidDiscard               = engine.DidDiscard
	WillIterateCycle         = engine.WillIterateCycle
)

// NewId builds an Id from a small non-negative index, for host programs
// that key a row off something other than a generated counter (e.g. a
// document id passed in from outside).
func NewId(index uint32) Id {
	return ids.IdFromIndex(index)
}

// New constructs an empty database with no ingredients registered.
// Callers build their own ingredients with New on internal/input,
// internal/interned, internal/trackedstruct, and internal/function,
// passing db.Registry() to each.
func New() *Database {
	return engine.New()
}

// Settings is the resolved set of tunables a host database may apply to
// its own ingredients (executor parallelism, default LRU capacity, cycle
// iteration ceiling, event verbosity) — see internal/config.
type Settings = config.Settings

// LoadSettings resolves Settings from dir/config.yaml plus EMBER_-prefixed
// environment overrides, falling back to built-in defaults when dir has no
// config.yaml.
func LoadSettings(dir string) (Settings, error) {
	return config.Load(dir)
}

// DefaultSettings resolves Settings from built-in defaults and environment
// overrides alone.
func DefaultSettings() Settings {
	return config.Default()
}
