package models

import "errors"

// Failure classes the engine distinguishes for callers. Infeasibility is not
// among them: a proven-empty solution space is a valid result, reported via
// AssignmentResult.Feasible.
var (
	// ErrDataUnavailable signals that an upstream collaborator failed to
	// return required records.
	ErrDataUnavailable = errors.New("upstream data unavailable")

	// ErrModelUnavailable signals that the abnormality model artifact could
	// not be loaded. There is no fallback; an un-scored pool has no cost signal.
	ErrModelUnavailable = errors.New("abnormality model unavailable")

	// ErrSolverTimeout signals that a solve exceeded its time budget
	// (unknown, as opposed to proven-none).
	ErrSolverTimeout = errors.New("solver timed out")
)
