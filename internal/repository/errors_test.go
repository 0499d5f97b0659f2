package repository

import (
	"errors"
	"fmt"
	"testing"
)

func TestConflictError(t *testing.T) {
	err := fmt.Errorf("create user: %w", &ConflictError{Constraint: "users_email_lower_key"})

	if !errors.Is(err, ErrConflict) {
		t.Fatalf("conflict must match ErrConflict")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("conflict must not match ErrNotFound")
	}
	if got := ConflictConstraint(err); got != "users_email_lower_key" {
		t.Fatalf("unexpected constraint %q", got)
	}
	if got := ConflictConstraint(ErrNotFound); got != "" {
		t.Fatalf("expected no constraint, got %q", got)
	}
	if got := (&ConflictError{}).Error(); got != "repository: conflict" {
		t.Fatalf("unexpected message %q", got)
	}
}
