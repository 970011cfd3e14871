package availability

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidTime     = errors.New("invalid time, expected HH:MM")
	ErrInvalidTick     = errors.New("tick size must be positive")
	ErrOutOfDay        = errors.New("time range does not fit into the day")
	ErrOverlap         = errors.New("time range overlaps an existing reservation")
	ErrDuplicate       = errors.New("reservation for this makeup type already exists")
)

// ConflictError указывает на бронь, с которой конфликтует кандидат.
// errors.Is(err, ErrOverlap) / errors.Is(err, ErrDuplicate) работают через Unwrap.
type ConflictError struct {
	ReservationID string
	StartTime     string
	Reason        error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v (reservation %s at %s)", e.Reason, e.ReservationID, e.StartTime)
}

func (e *ConflictError) Unwrap() error {
	return e.Reason
}
