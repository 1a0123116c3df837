package runtime

import "errors"

// ErrCancelled is the panic value used to unwind an in-progress query when
// a newer write has been committed while it was still running (spec.md
// §4.1, §7: "a pending write cancels outstanding readers cooperatively").
// Ingredient execution must not recover from it. Fetch does not retry: the
// goroutine holding the claim releases it and re-panics, so the value
// reaches the embedder's call.
var ErrCancelled = errors.New("ember: query cancelled by a pending write")
