package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/clinora/clinora/internal/shared"
)

const testSecret = "test-secret"

func signToken(t *testing.T, sub string, method jwt.SigningMethod, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		Email: "medico@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestVerify(t *testing.T) {
	v := NewVerifier(testSecret)
	medicoID := uuid.New()

	identity, err := v.Verify(signToken(t, medicoID.String(), jwt.SigningMethodHS256, time.Hour))
	require.NoError(t, err)
	require.Equal(t, medicoID, identity.MedicoID)
	require.Equal(t, "medico@example.com", identity.Email)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier(testSecret)
	_, err := v.Verify(signToken(t, uuid.NewString(), jwt.SigningMethodHS256, -time.Minute))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsNonUUIDSubject(t *testing.T) {
	v := NewVerifier(testSecret)
	_, err := v.Verify(signToken(t, "medico-1", jwt.SigningMethodHS256, time.Hour))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireTenant(t *testing.T) {
	v := NewVerifier(testSecret)
	medicoID := uuid.New()

	var got shared.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = shared.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, medicoID.String(), jwt.SigningMethodHS256, time.Hour))
	rec := httptest.NewRecorder()
	v.RequireTenant(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, medicoID, got.MedicoID)

	rec = httptest.NewRecorder()
	v.RequireTenant(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
