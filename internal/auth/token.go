package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = time.Hour

// Claims is the credential payload. Subject carries the user id.
type Claims struct {
	Email          string `json:"email"`
	OrganizationID string `json:"organizationId"`
	TenantID       string `json:"tenantId"`
	TokenVersion   int    `json:"tokenVersion"`
	jwt.RegisteredClaims
}

// Codec signs and verifies credentials with a process-wide HS256 secret.
// Rotating the secret invalidates all outstanding credentials.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithTTL overrides the default one hour credential lifetime.
func WithTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithIssuer sets the issuer claim.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		c.issuer = strings.TrimSpace(issuer)
	}
}

// WithCodecClock overrides the time source (useful for expiry tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec from the configured signing secret.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth secret is not configured")
	}
	c := &Codec{
		secret: []byte(secret),
		issuer: "plannersuite",
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured credential lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a credential for the given identity fields.
func (c *Codec) Issue(userID, email, organizationID, tenantID string, tokenVersion int) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("userID is required")
	}
	now := c.now().UTC()
	expiresAt := now.Add(c.ttl)
	claims := Claims{
		Email:          email,
		OrganizationID: organizationID,
		TenantID:       tenantID,
		TokenVersion:   tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates the signature and expiry and returns the payload. Failures
// are classified so callers can map them to distinct client responses:
// ErrTokenMalformed, ErrSignatureInvalid or ErrTokenExpired.
func (c *Codec) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, ErrSignatureInvalid
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrSignatureInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// Remaining returns how long the claims stay valid from now; zero when
// already expired or when no expiry is present.
func (c *Codec) Remaining(claims *Claims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	d := claims.ExpiresAt.Time.Sub(c.now())
	if d < 0 {
		return 0
	}
	return d
}
