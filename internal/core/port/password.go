package port

// PasswordHasher turns plain passwords into the string stored in users.password.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify accepts hashes produced with any parameter set the hasher can decode.
	Verify(password string, encoded string) (bool, error)
}

// PasswordRehasher is implemented by hashers that can tell when a stored hash predates the
// active cost settings. Login upgrades such hashes in place.
type PasswordRehasher interface {
	NeedsRehash(encoded string) bool
}

// Argon2Params are the Argon2id cost settings used for new hashes.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordPolicyValidator rejects weak passwords. inputs are user attributes (email, name)
// a password must not be built from.
type PasswordPolicyValidator interface {
	Validate(password string, inputs ...string) error
}
