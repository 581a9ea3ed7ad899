// Package auth verifies bearer tokens issued by the external identity
// provider. Tokens are HS256-signed; the subject claim is the tenant id.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clinora/clinora/internal/shared"
)

// ErrInvalidToken covers expired, malformed and badly signed tokens.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Claims is the token payload. The subject is the medico id; it is the
// only trusted source of tenant identity, never the request body.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens with a shared HS256 secret.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates the token, returning the tenant identity.
func (v *Verifier) Verify(token string) (shared.Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return shared.Identity{}, ErrInvalidToken
	}
	medicoID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return shared.Identity{}, ErrInvalidToken
	}
	return shared.Identity{MedicoID: medicoID, Email: claims.Email}, nil
}
