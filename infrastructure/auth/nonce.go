package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ca-srg/autoloadwatch/domain"
)

// NonceSigner issues and verifies time-bound action nonces.
// A nonce is an HS256 JWT carrying the action and an exp claim.
type NonceSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type nonceClaims struct {
	Action string `json:"action"`
	jwt.RegisteredClaims
}

// NewNonceSigner creates a signer. An empty secret is replaced by a random
// one, so nonces do not survive a restart.
func NewNonceSigner(secret string, ttl time.Duration) (*NonceSigner, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate nonce secret: %w", err)
		}
	}
	if ttl <= 0 {
		return nil, domain.ErrInvalidInput("nonce ttl", "must be positive")
	}
	return &NonceSigner{secret: key, ttl: ttl, now: time.Now}, nil
}

// Issue returns a nonce for action valid for the signer's TTL
func (s *NonceSigner) Issue(action string) (string, error) {
	now := s.now()
	claims := nonceClaims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	nonce, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign nonce: %w", err)
	}
	return nonce, nil
}

// Verify checks that nonce was issued for action and has not expired
func (s *NonceSigner) Verify(action, nonce string) error {
	if nonce == "" {
		return domain.ErrInvalidInput("nonce", "missing")
	}

	claims := &nonceClaims{}
	_, err := jwt.ParseWithClaims(nonce, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrInvalidInput("nonce", "expired")
	case err != nil:
		return domain.ErrInvalidInput("nonce", "invalid: "+err.Error())
	}

	if claims.Action != action {
		return domain.ErrInvalidInput("nonce", "issued for another action")
	}
	return nil
}

// TTL returns how long issued nonces stay valid
func (s *NonceSigner) TTL() time.Duration {
	return s.ttl
}
