package motion

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateAxis is returned when an axis id is registered twice.
	ErrDuplicateAxis = errors.New("duplicate axis id")
	// ErrUnknownAxis is returned for an axis id that was never registered.
	ErrUnknownAxis = errors.New("unknown axis id")
	// ErrQueryExhausted matches every *QueryExhaustedError.
	ErrQueryExhausted = errors.New("query retries exhausted")
	// ErrAxisUnreachable matches every *AxisUnreachableError.
	ErrAxisUnreachable = errors.New("axis unable to reach position")
	// ErrTooFewAxes is returned when a position cannot be measured with less than 3 axes.
	ErrTooFewAxes = errors.New("at least 3 axes are needed")
	// ErrInvalidMove is returned for a move with a non finite position, velocity or tolerance.
	ErrInvalidMove = errors.New("position, velocity and tolerance must be finite")
	// ErrInvalidResolution is returned for a line resolution that is not > 0.
	ErrInvalidResolution = errors.New("line resolution must be > 0")
)

// QueryExhaustedError reports a query that got no valid response within the retry budget.
type QueryExhaustedError struct {
	Command  string
	Attempts int
	Last     error // failure of the last attempt
}

func (e *QueryExhaustedError) Error() string {
	return fmt.Sprintf("no valid response to %q after %d attempts: %v", e.Command, e.Attempts, e.Last)
}

func (e *QueryExhaustedError) Is(target error) bool { return target == ErrQueryExhausted }
func (e *QueryExhaustedError) Unwrap() error        { return e.Last }

// AxisUnreachableError reports an axis that stopped converging during a move.
type AxisUnreachableError struct {
	ID           int
	RemainingDeg float64 // angle still missing when the axis was given up
}

func (e *AxisUnreachableError) Error() string {
	return fmt.Sprintf("axis %d is not able to reach position (%.1f deg remaining)", e.ID, e.RemainingDeg)
}

func (e *AxisUnreachableError) Is(target error) bool { return target == ErrAxisUnreachable }
