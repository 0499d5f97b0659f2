package security

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

var (
	// ErrKeyIDMissing indicates no kid is associated with the supplied key.
	ErrKeyIDMissing = errors.New("jwt: missing key identifier")
	// ErrKeyNotRegistered indicates a kid the key provider does not know.
	ErrKeyNotRegistered = errors.New("jwt: key not registered")
	// ErrTokenInvalid covers bad signatures, unknown keys and malformed claims.
	ErrTokenInvalid = errors.New("jwt: invalid token")
	// ErrTokenExpired is returned when the signature is valid but exp has passed.
	ErrTokenExpired = errors.New("jwt: token expired")
)

// JWTManager signs and verifies RS256 access tokens. Keys and the published JWKS both come
// from the KeyProvider, so a rotated-out key keeps verifying until its file is removed.
type JWTManager struct {
	keys   KeyProvider
	issuer string
	now    func() time.Time
}

// NewJWTManager constructs a JWTManager for the supplied key provider and issuer.
func NewJWTManager(provider KeyProvider, issuer string) *JWTManager {
	return &JWTManager{keys: provider, issuer: issuer, now: time.Now}
}

// WithClock overrides the verification clock for deterministic testing.
func (m *JWTManager) WithClock(clock func() time.Time) *JWTManager {
	if clock != nil {
		m.now = clock
	}
	return m
}

func (m *JWTManager) verificationKey(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	if kid = strings.TrimSpace(kid); kid == "" {
		return nil, ErrKeyIDMissing
	}
	key, err := m.keys.GetVerificationKey(kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotRegistered, kid)
	}
	return key, nil
}

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS renders every verification key as a JSON Web Key Set ordered by kid.
func (m *JWTManager) JWKS() ([]byte, error) {
	published := m.keys.ListVerificationKeys()
	kids := make([]string, 0, len(published))
	for kid, key := range published {
		if key != nil {
			kids = append(kids, kid)
		}
	}
	sort.Strings(kids)

	set := struct {
		Keys []jwk `json:"keys"`
	}{Keys: make([]jwk, 0, len(kids))}
	for _, kid := range kids {
		key := published[kid]
		set.Keys = append(set.Keys, jwk{
			Kty: "RSA",
			Use: "sig",
			Alg: jwt.SigningMethodRS256.Alg(),
			Kid: kid,
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}
	return json.Marshal(set)
}

// AccessTokenClaims carries the subject and the super admin flag.
type AccessTokenClaims struct {
	SuperAdmin bool `json:"sa,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *AccessTokenClaims) UserID() string {
	return c.Subject
}

// AccessTokenOptions configures creation of access token claims.
type AccessTokenOptions struct {
	UserID     string
	SuperAdmin bool
	TTL        time.Duration
	IssuedAt   time.Time
	JTI        string
}

const defaultAccessTokenTTL = 60 * time.Minute

// NewAccessTokenClaims constructs claims with iat = nbf = IssuedAt and exp = IssuedAt + TTL.
func (m *JWTManager) NewAccessTokenClaims(opts AccessTokenOptions) (*AccessTokenClaims, error) {
	userID := strings.TrimSpace(opts.UserID)
	if userID == "" {
		return nil, fmt.Errorf("jwt: user id is required")
	}

	now := opts.IssuedAt
	if now.IsZero() {
		now = m.now()
	}
	now = now.UTC().Truncate(time.Second)

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	jti := strings.TrimSpace(opts.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	return &AccessTokenClaims{
		SuperAdmin: opts.SuperAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}, nil
}

// SignAccessToken signs the claims with the provider's active key and kid header.
func (m *JWTManager) SignAccessToken(claims *AccessTokenClaims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("jwt: access token claims required")
	}
	if m.keys == nil {
		return "", fmt.Errorf("jwt: key provider not configured")
	}
	kid := strings.TrimSpace(m.keys.SigningKeyID())
	if kid == "" {
		return "", ErrKeyIDMissing
	}

	signingKey, err := m.keys.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies the signature, issuer and time claims. Expired tokens return
// their claims together with ErrTokenExpired so callers can tell expiry from tampering.
func (m *JWTManager) ParseAccessToken(raw string) (*AccessTokenClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, m.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		// Claims are only validated after the signature checks out.
		if errors.Is(err, jwt.ErrTokenExpired) && claims.Issuer == m.issuer && claims.Subject != "" && claims.ID != "" {
			return claims, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if parsed == nil || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" || claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
