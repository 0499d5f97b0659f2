package repository

import "errors"

var (
	// ErrNotFound is returned when the row is missing or soft-deleted.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict matches every ConflictError.
	ErrConflict = errors.New("repository: conflict")
)

// ConflictError names the unique constraint a write tripped, such as users_email_lower_key.
type ConflictError struct {
	Constraint string
}

func (e *ConflictError) Error() string {
	if e.Constraint == "" {
		return ErrConflict.Error()
	}
	return ErrConflict.Error() + ": " + e.Constraint
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConflictConstraint returns the violated constraint, or "" when err is not a conflict.
func ConflictConstraint(err error) string {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Constraint
	}
	return ""
}
