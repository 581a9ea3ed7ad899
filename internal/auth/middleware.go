package auth

import (
	"net/http"
	"strings"

	"github.com/clinora/clinora/internal/platform/httpx"
	"github.com/clinora/clinora/internal/shared"
)

// RequireTenant authenticates the request and stores the tenant identity
// in context. Requests without a valid bearer token never reach handlers.
func (v *Verifier) RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		identity, err := v.Verify(token)
		if err != nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}
