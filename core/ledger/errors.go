package ledger

import "errors"

var (
	// ErrNoUnit is returned when unit-scoped helpers are used outside Run.
	ErrNoUnit = errors.New("no unit of work in context")

	// ErrCommitFailed wraps a participant commit failure.
	ErrCommitFailed = errors.New("unit commit failed")

	// ErrUnitClosed is returned when staging work on a unit that already finished.
	ErrUnitClosed = errors.New("unit already finished")

	// ErrReentrant is returned when Run is entered again from inside a unit of another
	// ledger that is itself nested in a unit of this one.
	ErrReentrant = errors.New("ledger re-entered through a foreign unit")
)
