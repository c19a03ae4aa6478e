// Package auth issues and validates bearer tokens and hashes account
// secrets.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenMalformed covers bad signatures, unparseable payloads,
	// unexpected algorithms and missing subjects.
	ErrTokenMalformed = errors.New("auth: malformed token")
	// ErrTokenExpired is returned once the clock reaches the exp claim.
	ErrTokenExpired = errors.New("auth: token expired")
)

// TokenConfig is supplied once at construction.
type TokenConfig struct {
	Secret   string
	Lifetime time.Duration
}

// TokenService issues HS256 tokens carrying sub, iat and exp. It holds no
// mutable state and is safe for concurrent use.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

type TokenOption func(*TokenService)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: token secret must not be empty")
	}
	if cfg.Lifetime <= 0 {
		return nil, fmt.Errorf("auth: token lifetime must be positive, got %s", cfg.Lifetime)
	}

	s := &TokenService{
		secret:   []byte(cfg.Secret),
		lifetime: cfg.Lifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for subject valid for the configured lifetime.
func (s *TokenService) Issue(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("auth: subject must not be empty")
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Validate returns the subject of a well-formed, unexpired token.
func (s *TokenService) Validate(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case claims.Subject == "":
		return "", fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	return claims.Subject, nil
}

// ValidateFor reports whether token is valid and names expectedSubject.
func (s *TokenService) ValidateFor(token, expectedSubject string) bool {
	subject, err := s.Validate(token)
	return err == nil && subject == expectedSubject
}
