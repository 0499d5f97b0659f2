package port

import (
	"context"

	"github.com/jebauza/VetFlow/internal/core/domain"
)

// TokenDenylist remembers invalidated token ids until they expire.
type TokenDenylist interface {
	// Add reports whether the jti was newly denylisted. A second Add of the same jti, or of an
	// already expired revocation, returns false.
	Add(ctx context.Context, revocation domain.TokenRevocation) (bool, error)
	Contains(ctx context.Context, jti string) (bool, error)
}
