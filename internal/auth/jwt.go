package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers every way a bearer token can fail verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSubject indicates a well-signed token without a user id.
	ErrMissingSubject = errors.New("token has no subject")
)

// Claims are the identity provider claims the service reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// VerifiedToken is the result of a successful verification.
type VerifiedToken struct {
	Raw       string
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// TTL returns how long the token stays valid after now.
// Tokens without an expiry report fallback.
func (t *VerifiedToken) TTL(now time.Time, fallback time.Duration) time.Duration {
	if t.ExpiresAt.IsZero() {
		return fallback
	}
	ttl := t.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Verifier validates HS256 tokens issued by the identity provider.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewVerifier creates a verifier. Empty issuer or audience skip those checks.
func NewVerifier(secret, issuer, audience string) *Verifier {
	return &Verifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// Verify parses and validates a raw bearer token.
func (v *Verifier) Verify(raw string) (*VerifiedToken, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrMissingSubject)
	}

	tok := &VerifiedToken{
		Raw:    raw,
		UserID: sub,
		Email:  strings.TrimSpace(claims.Email),
	}
	if claims.ExpiresAt != nil {
		tok.ExpiresAt = claims.ExpiresAt.Time
	}
	return tok, nil
}

// Sign issues an HS256 token for the given user. Used by tests and local tooling.
func (v *Verifier) Sign(userID, email string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.issuer != "" {
		claims.Issuer = v.issuer
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
