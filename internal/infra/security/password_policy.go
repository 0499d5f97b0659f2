package security

import (
	"fmt"
	"strings"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/jebauza/VetFlow/internal/core/port"
)

const (
	defaultMinPasswordLength = 8
	maxPasswordLength        = 128
	maxStrengthScore         = 4
	minPersonalInputLength   = 4
)

// PasswordViolation is the first rule a password broke. Message is user facing.
type PasswordViolation struct {
	Rule    string
	Message string
}

func (v *PasswordViolation) Error() string {
	return v.Message
}

// PasswordPolicy implements port.PasswordPolicyValidator: length bounds, no personal data,
// and a minimum zxcvbn score. A score of zero disables the strength check.
type PasswordPolicy struct {
	minLength int
	minScore  int
}

// NewPasswordPolicy builds a policy; a non-positive minLength falls back to 8.
func NewPasswordPolicy(minLength, minScore int) *PasswordPolicy {
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	if minScore > maxStrengthScore {
		minScore = maxStrengthScore
	}
	return &PasswordPolicy{minLength: minLength, minScore: minScore}
}

// Validate checks password. inputs are the user's email and names; email local parts are
// checked on their own too.
func (p *PasswordPolicy) Validate(password string, inputs ...string) error {
	personal := personalInputs(inputs)

	switch n := utf8.RuneCountInString(password); {
	case n < p.minLength:
		return &PasswordViolation{Rule: "min_length", Message: fmt.Sprintf("The password must be at least %d characters.", p.minLength)}
	case n > maxPasswordLength:
		return &PasswordViolation{Rule: "max_length", Message: fmt.Sprintf("The password may not be greater than %d characters.", maxPasswordLength)}
	}

	lowered := strings.ToLower(password)
	for _, input := range personal {
		if len(input) >= minPersonalInputLength && strings.Contains(lowered, strings.ToLower(input)) {
			return &PasswordViolation{Rule: "personal_data", Message: "The password must not contain your name or email."}
		}
	}

	if p.minScore > 0 && zxcvbn.PasswordStrength(password, personal).Score < p.minScore {
		return &PasswordViolation{Rule: "weak_password", Message: "The password is too weak; choose a more complex value."}
	}
	return nil
}

func personalInputs(inputs []string) []string {
	out := make([]string, 0, len(inputs)*2)
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		out = append(out, input)
		if local, _, ok := strings.Cut(input, "@"); ok && local != "" {
			out = append(out, local)
		}
	}
	return out
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)
