package services

import "errors"

// Pipeline error taxonomy. Conditional writes that lose a race report it via
// their bool return and are treated as success, so there is no conflict
// sentinel; sink failures are logged where they happen and never propagated.
var (
	// ErrNotFound: a hard error for the user row, a benign no-op for
	// challenge contribution.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState: an operation targeting a row outside the state that
	// permits it (e.g. advancing a closed milestone). Callers no-op.
	ErrInvalidState = errors.New("invalid state")
)
