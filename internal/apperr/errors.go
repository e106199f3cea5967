package apperr

import (
	"errors"
	"fmt"
)

// Error taxonomy for the progress/availability core. Primary-path failures
// surface one of these; side-effect failures stay in logs.
var (
	ErrAccessDenied = errors.New("access denied")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
)

// StateConflictError is returned when on-demand quiz generation is
// requested before the module is complete. It carries the current counts
// so the client can show how far the student is.
type StateConflictError struct {
	CompletedLessons int `json:"completed_lessons"`
	TotalLessons     int `json:"total_lessons"`
	ProgressPct      int `json:"progress_pct"`
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("module not completed: %d/%d lessons", e.CompletedLessons, e.TotalLessons)
}

func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func AccessDeniedf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrAccessDenied)...)
}

func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}
