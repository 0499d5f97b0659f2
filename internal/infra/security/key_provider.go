package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrKeyNotFound = errors.New("key not found")

// KeyProvider defines the interface for providing cryptographic keys.
type KeyProvider interface {
	SigningKeyID() string
	GetSigningKey() (*rsa.PrivateKey, error)
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
	ListVerificationKeys() map[string]*rsa.PublicKey
}

// DirKeyProvider loads PEM keys from a directory; the file name without extension is the kid.
type DirKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKID string
	signingKey *rsa.PrivateKey
}

// NewDirKeyProvider reads every key in keyDir. activeKID selects the signing key;
// when empty the lexically first private key signs.
func NewDirKeyProvider(keyDir, activeKID string) (*DirKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory: %w", err)
	}

	provider := &DirKeyProvider{keys: make(map[string]*rsa.PublicKey)}
	private := make(map[string]*rsa.PrivateKey)

	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}

		path := filepath.Join(keyDir, file.Name())
		keyData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
		}

		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		privateKey, publicKey, err := parsePEMKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse key file %s: %w", path, err)
		}
		if privateKey != nil {
			private[kid] = privateKey
		}
		provider.keys[kid] = publicKey
	}

	if len(private) == 0 {
		return nil, errors.New("no private key found for signing")
	}

	kid := strings.TrimSpace(activeKID)
	if kid == "" {
		kids := make([]string, 0, len(private))
		for k := range private {
			kids = append(kids, k)
		}
		sort.Strings(kids)
		kid = kids[0]
	}

	key, ok := private[kid]
	if !ok {
		return nil, fmt.Errorf("%w: active signing key %s", ErrKeyNotFound, kid)
	}
	provider.signingKID = kid
	provider.signingKey = key

	return provider, nil
}

func parsePEMKey(data []byte) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, nil, errors.New("failed to decode PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, &key.PublicKey, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, &rsaKey.PublicKey, nil
		}
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return nil, key, nil
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return nil, rsaKey, nil
		}
	}
	return nil, nil, errors.New("unsupported key type")
}

// SigningKeyID returns the kid of the signing key.
func (p *DirKeyProvider) SigningKeyID() string {
	return p.signingKID
}

// GetSigningKey returns the private key for signing tokens.
func (p *DirKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.signingKey, nil
}

// GetVerificationKey returns the public key for verifying tokens.
func (p *DirKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// ListVerificationKeys exposes every public key for JWKS publication.
func (p *DirKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey, len(p.keys))
	for kid, key := range p.keys {
		out[kid] = key
	}
	return out
}

// EphemeralKeyProvider holds a single in-memory RSA key; tokens do not survive a restart.
type EphemeralKeyProvider struct {
	kid string
	key *rsa.PrivateKey
}

// NewEphemeralKeyProvider generates a fresh 2048-bit key.
func NewEphemeralKeyProvider(kid string) (*EphemeralKeyProvider, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	if strings.TrimSpace(kid) == "" {
		kid = "ephemeral"
	}
	return &EphemeralKeyProvider{kid: kid, key: key}, nil
}

func (p *EphemeralKeyProvider) SigningKeyID() string { return p.kid }

func (p *EphemeralKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) { return p.key, nil }

func (p *EphemeralKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != p.kid {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return &p.key.PublicKey, nil
}

func (p *EphemeralKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	return map[string]*rsa.PublicKey{p.kid: &p.key.PublicKey}
}

// NewKeyProvider loads keys from keyDir. Outside production a missing directory falls back
// to an ephemeral key.
func NewKeyProvider(env, keyDir, activeKID string) (KeyProvider, error) {
	provider, err := NewDirKeyProvider(keyDir, activeKID)
	if err == nil {
		return provider, nil
	}
	if env == "production" {
		return nil, err
	}
	return NewEphemeralKeyProvider(activeKID)
}
