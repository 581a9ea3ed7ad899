package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorEnvelope is the wire format for every error response.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends the error envelope.
func Error(w http.ResponseWriter, status int, msg, details string) {
	JSON(w, status, ErrorEnvelope{Error: msg, Details: details})
}

// DecodeJSON decodes the request body into target, refusing unknown fields.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: corpo da requisicao invalido", ErrValidation)
	}
	return nil
}
