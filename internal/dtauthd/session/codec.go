// Package session implements issuance and validation of the compact signed
// session tokens handed out once a device authorization completes.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	werrors "github.com/devtrackhq/devtrack-auth/internal/dtauthd/errors"
)

// MinKeyLength is the minimum accepted signing key size in bytes.
// HS256 keys shorter than the hash output weaken the signature.
const MinKeyLength = 32

// Principal identifies an authenticated human or service identity.
type Principal struct {
	ID    uuid.UUID
	Email string
}

// Claims is the payload embedded in a session token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens. The key material is loaded once
// at construction and never mutated, so a single Codec is safe for
// concurrent use.
type Codec struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewCodec creates a session token codec with the given symmetric key and TTL.
func NewCodec(key []byte, ttl time.Duration, issuer string) (*Codec, error) {
	if len(key) < MinKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes, got %d", MinKeyLength, len(key))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token TTL must be positive, got %s", ttl)
	}

	return &Codec{
		key:    key,
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue mints a signed token asserting the principal's identity until
// the configured TTL elapses.
func (c *Codec) Issue(principalID uuid.UUID, email string) (string, error) {
	now := c.now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID.String(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("error signing session token: %w", err)
	}
	return signed, nil
}

// Validate verifies the token's signature and expiry and returns the embedded
// principal. Any structural, signature, or expiry failure yields ErrTokenInvalid
// with no partial claims.
func (c *Codec) Validate(tokenString string) (Principal, error) {
	const op = "session.Validate"

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)

	var claims Claims
	token, err := parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, werrors.NewError("TOKEN_EXPIRED", "session token expired", op, werrors.ErrTokenInvalid)
		}
		return Principal{}, werrors.NewError("TOKEN_INVALID", "session token rejected", op, werrors.ErrTokenInvalid)
	}
	if !token.Valid {
		return Principal{}, werrors.NewError("TOKEN_INVALID", "session token rejected", op, werrors.ErrTokenInvalid)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Principal{}, werrors.NewError("TOKEN_INVALID", "session token missing subject", op, werrors.ErrTokenInvalid)
	}

	id, err := uuid.Parse(subject)
	if err != nil {
		return Principal{}, werrors.NewError("TOKEN_INVALID", "session token subject malformed", op, werrors.ErrTokenInvalid)
	}

	return Principal{ID: id, Email: claims.Email}, nil
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}
