package engine

import (
	"errors"
	"fmt"
)

// ErrNotSet is returned by an input field accessor when the row has never
// had that field populated (spec.md §4.4).
var ErrNotSet = errors.New("ember: field read before it was set")

// LogicError panics with a message identifying a bug in the embedder —
// e.g. reading a tracked struct whose creator did not run this revision,
// or calling Snapshot mid-query (spec.md §7, "Logic errors in the
// embedder ... should panic with a descriptive message").
func LogicError(format string, args ...any) {
	panic(fmt.Sprintf("ember: "+format, args...))
}
