// Package httpx provides JSON response helpers and the error envelope.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer. Services wrap these; handlers
// pass whatever they get to RespondError.
var (
	// ErrNotFound also covers rows owned by another tenant. Existence of
	// foreign rows is never revealed.
	ErrNotFound = errors.New("recurso nao encontrado")
	// ErrDuplicate maps unique-constraint violations (CPF, telefone).
	ErrDuplicate = errors.New("registro duplicado")
	// ErrValidation indicates a malformed or incomplete request.
	ErrValidation = errors.New("dados invalidos")
	// ErrUnauthorized indicates a missing or invalid bearer token.
	ErrUnauthorized = errors.New("nao autorizado")
	// ErrUpstream indicates the payment gateway rejected or failed a call.
	ErrUpstream = errors.New("falha no provedor externo")
	// ErrReconciliation marks a partial failure: the external side effect
	// succeeded but the local write did not. The state needs compensating
	// action, not a retry of the whole request.
	ErrReconciliation = errors.New("falha parcial, reconciliacao pendente")
)

// RespondError maps a domain error onto the JSON error envelope.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Error(w, http.StatusNotFound, ErrNotFound.Error(), detailOf(err, ErrNotFound))
	case errors.Is(err, ErrDuplicate):
		Error(w, http.StatusConflict, ErrDuplicate.Error(), detailOf(err, ErrDuplicate))
	case errors.Is(err, ErrValidation):
		Error(w, http.StatusBadRequest, ErrValidation.Error(), detailOf(err, ErrValidation))
	case errors.Is(err, ErrUnauthorized):
		Error(w, http.StatusUnauthorized, ErrUnauthorized.Error(), "")
	case errors.Is(err, ErrUpstream):
		Error(w, http.StatusInternalServerError, ErrUpstream.Error(), detailOf(err, ErrUpstream))
	case errors.Is(err, ErrReconciliation):
		Error(w, http.StatusInternalServerError, ErrReconciliation.Error(), detailOf(err, ErrReconciliation))
	default:
		Error(w, http.StatusInternalServerError, "erro interno", "")
	}
}

// detailOf strips the sentinel text from the wrapped chain so the envelope
// does not repeat the title in details.
func detailOf(err, sentinel error) string {
	msg := err.Error()
	if msg == sentinel.Error() {
		return ""
	}
	return msg
}
