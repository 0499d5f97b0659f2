package usecase

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jebauza/VetFlow/internal/pagination"
	"github.com/jebauza/VetFlow/internal/repository"
)

var (
	// ErrNotFound indicates the id has no matching live row.
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthenticated covers missing, invalid, expired and denylisted tokens.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates a valid principal without the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")

	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	// ErrInvalidAccessToken indicates a malformed token or a bad signature.
	ErrInvalidAccessToken = fmt.Errorf("%w: invalid access token", ErrUnauthenticated)
	// ErrExpiredAccessToken indicates the token exp has passed.
	ErrExpiredAccessToken = fmt.Errorf("%w: access token expired", ErrUnauthenticated)
	// ErrRevokedAccessToken indicates the token id is on the denylist.
	ErrRevokedAccessToken = fmt.Errorf("%w: access token revoked", ErrUnauthenticated)

	// ErrSuperAdminProtected is returned when a management call targets a super admin.
	ErrSuperAdminProtected = fmt.Errorf("%w: super admin accounts cannot be managed", ErrForbidden)
	// ErrAvatarNotFound is returned when a user has no avatar or its blob is gone.
	ErrAvatarNotFound = fmt.Errorf("%w: avatar not found", ErrNotFound)
)

// ValidationError carries field-keyed messages. Unknown reference errors also match ErrNotFound
// and duplicate values also match ErrConflict.
type ValidationError struct {
	Fields   map[string][]string
	notFound bool
	conflict bool
}

func newValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// NewFieldError builds a ValidationError with a single message.
func NewFieldError(field, message string) *ValidationError {
	err := newValidationError()
	err.Add(field, message)
	return err
}

// Add appends message to field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+strings.Join(e.Fields[key], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return (e.notFound && target == ErrNotFound) || (e.conflict && target == ErrConflict)
}

func conflictError(field, message string) *ValidationError {
	err := NewFieldError(field, message)
	err.conflict = true
	return err
}

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AsValidationError converts pagination request errors into a ValidationError, passing anything else through.
func AsValidationError(err error) error {
	var reqErr *pagination.RequestError
	if errors.As(err, &reqErr) {
		return &ValidationError{Fields: reqErr.Fields}
	}
	return err
}

// translate maps repository sentinels onto the service taxonomy.
func translate(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s: %w", action, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}
