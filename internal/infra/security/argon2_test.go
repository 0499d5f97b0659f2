package security

import (
	"strings"
	"testing"

	"github.com/jebauza/VetFlow/internal/core/port"
)

func testHasher(t *testing.T) *Argon2Hasher {
	t.Helper()
	hasher, err := NewArgon2Hasher(port.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2Hasher returned error: %v", err)
	}
	return hasher
}

func TestArgon2HasherRoundTrip(t *testing.T) {
	hasher := testHasher(t)

	encoded, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if !strings.HasPrefix(encoded, "argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}

	ok, err := hasher.Verify("correct horse battery staple", encoded)
	if err != nil || !ok {
		t.Fatalf("expected password to verify, ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("wrong", encoded)
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
}

func TestArgon2HasherSaltsEveryHash(t *testing.T) {
	hasher := testHasher(t)

	first, _ := hasher.Hash("same-password")
	second, _ := hasher.Hash("same-password")
	if first == second {
		t.Fatalf("expected distinct hashes for the same password")
	}
}

func TestArgon2HasherRejectsMalformedHash(t *testing.T) {
	hasher := testHasher(t)

	for _, encoded := range []string{"plain", "argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA", "argon2id$v=19$m=8192,t=1$c2FsdA$aGFzaA"} {
		if _, err := hasher.Verify("password", encoded); err == nil {
			t.Fatalf("expected error for %q", encoded)
		}
	}
}

func TestArgon2HasherNeedsRehash(t *testing.T) {
	hasher := testHasher(t)
	encoded, _ := hasher.Hash("password")
	if hasher.NeedsRehash(encoded) {
		t.Fatalf("fresh hash should not need rehash")
	}

	stronger, err := NewArgon2Hasher(DefaultArgon2Params())
	if err != nil {
		t.Fatalf("NewArgon2Hasher returned error: %v", err)
	}
	if !stronger.NeedsRehash(encoded) {
		t.Fatalf("expected rehash when parameters change")
	}
}

func TestNewArgon2HasherValidatesParams(t *testing.T) {
	if _, err := NewArgon2Hasher(port.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}); err == nil {
		t.Fatalf("expected error for low memory")
	}
}
