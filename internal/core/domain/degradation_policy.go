package domain

import "strings"

// DegradationPolicyMode selects how token checks behave when the denylist backend cannot answer.
type DegradationPolicyMode string

const (
	// DegradationPolicyModeStrict rejects the request when revocation status cannot be confirmed.
	DegradationPolicyModeStrict DegradationPolicyMode = "strict"
	// DegradationPolicyModeLenient accepts an otherwise valid token when the denylist is unreachable.
	DegradationPolicyModeLenient DegradationPolicyMode = "lenient"
)

// DegradationReason names the failure a fallback decision is evaluated for.
type DegradationReason string

const (
	// DegradationReasonDenylistUnavailable denotes a failed or timed out denylist lookup.
	DegradationReasonDenylistUnavailable DegradationReason = "denylist_unavailable"
)

// DegradationPolicy centralises how the service responds when revocation data is unavailable.
// The zero value is strict.
type DegradationPolicy struct {
	mode DegradationPolicyMode
}

// NewDegradationPolicy constructs a policy, defaulting to strict when mode is unknown.
func NewDegradationPolicy(mode DegradationPolicyMode) DegradationPolicy {
	if mode != DegradationPolicyModeLenient {
		mode = DegradationPolicyModeStrict
	}
	return DegradationPolicy{mode: mode}
}

// ParseDegradationPolicyMode normalises textual input into a supported mode.
func ParseDegradationPolicyMode(value string) (DegradationPolicyMode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(DegradationPolicyModeStrict):
		return DegradationPolicyModeStrict, true
	case string(DegradationPolicyModeLenient):
		return DegradationPolicyModeLenient, true
	default:
		return DegradationPolicyModeStrict, false
	}
}

// Mode returns the effective policy mode.
func (p DegradationPolicy) Mode() DegradationPolicyMode {
	if p.mode == "" {
		return DegradationPolicyModeStrict
	}
	return p.mode
}

// AllowsFallback reports whether a request may continue after the given failure.
func (p DegradationPolicy) AllowsFallback(reason DegradationReason) bool {
	return p.Mode() == DegradationPolicyModeLenient && reason != ""
}
