package security

import (
	"errors"
	"strings"
	"testing"
)

func assertRule(t *testing.T, err error, rule string) {
	t.Helper()
	var violation *PasswordViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected PasswordViolation for %s, got %v", rule, err)
	}
	if violation.Rule != rule {
		t.Fatalf("expected rule %s, got %s", rule, violation.Rule)
	}
}

func TestPasswordPolicyAcceptsStrongPassword(t *testing.T) {
	policy := NewPasswordPolicy(8, 2)

	if err := policy.Validate("Clinic-Ferret-Harbor-71", "ana@vetflow.test", "Ana"); err != nil {
		t.Fatalf("expected password to pass validation, got %v", err)
	}
}

func TestPasswordPolicyViolations(t *testing.T) {
	policy := NewPasswordPolicy(8, 3)

	assertRule(t, policy.Validate("short"), "min_length")
	assertRule(t, policy.Validate(strings.Repeat("a", 200)), "max_length")
	assertRule(t, policy.Validate("martinez-2024!", "Martinez", "lucia@vetflow.test"), "personal_data")
	assertRule(t, policy.Validate("xx-lucia-xx-99!", "lucia@vetflow.test"), "personal_data")
	assertRule(t, policy.Validate("password123"), "weak_password")
}

func TestPasswordPolicyCountsRunes(t *testing.T) {
	policy := NewPasswordPolicy(8, 0)

	if err := policy.Validate("ñandúñandú"); err != nil {
		t.Fatalf("expected multibyte password to pass, got %v", err)
	}
	assertRule(t, policy.Validate("ñandú"), "min_length")
}

func TestPasswordPolicyScoreZeroOnlyChecksLength(t *testing.T) {
	policy := NewPasswordPolicy(0, 0)

	if err := policy.Validate("12345678"); err != nil {
		t.Fatalf("expected length-only policy to pass, got %v", err)
	}
	assertRule(t, policy.Validate("1234567"), "min_length")
}
