package domain

import "time"

// IssuedToken is the result of minting an access token.
type IssuedToken struct {
	Token     string
	TokenType string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenRevocation records an invalidated token identifier until its natural expiry.
type TokenRevocation struct {
	JTI       string
	SubjectID string
	Reason    string
	RevokedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the revocation can be garbage collected.
func (r TokenRevocation) IsExpired(at time.Time) bool {
	return !r.ExpiresAt.After(at)
}

// TTL returns the remaining lifetime of the revocation relative to at.
func (r TokenRevocation) TTL(at time.Time) time.Duration {
	remaining := r.ExpiresAt.Sub(at)
	if remaining < 0 {
		return 0
	}
	return remaining
}
