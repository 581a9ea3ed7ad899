package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/clinora/clinora/internal/platform/httpx"
)

const maxBodyBytes = 256 << 10

// MetricsPort counts processed deliveries.
type MetricsPort interface {
	ObserveWebhook(event, outcome string)
}

// Handler is the unauthenticated webhook endpoint. A shared-secret HMAC
// over the raw body replaces bearer auth; the signature is checked before
// the payload is parsed.
type Handler struct {
	logger     *slog.Logger
	secret     []byte
	reconciler *Reconciler
	metrics    MetricsPort
}

// NewHandler constructs the webhook handler. metrics may be nil.
func NewHandler(logger *slog.Logger, secret string, reconciler *Reconciler, metrics MetricsPort) *Handler {
	return &Handler{logger: logger, secret: []byte(secret), reconciler: reconciler, metrics: metrics}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "corpo ilegivel")
		return
	}

	if !h.verify(body, r.Header.Get("X-Webhook-Signature")) {
		h.logger.Warn("webhook signature rejected", slog.String("remote", r.RemoteAddr))
		httpx.Error(w, http.StatusUnauthorized, httpx.ErrUnauthorized.Error(), "assinatura invalida")
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "payload invalido")
		return
	}

	outcome, err := h.reconciler.Apply(r.Context(), event)
	if h.metrics != nil {
		h.metrics.ObserveWebhook(event.Event, string(outcome))
	}
	if err != nil {
		h.logger.Error("webhook processing failed",
			slog.String("event", event.Event),
			slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "erro interno", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

// verify compares the hex HMAC-SHA256 of the raw body against the header
// in constant time. An optional "sha256=" prefix is accepted.
func (h *Handler) verify(body []byte, header string) bool {
	if header == "" || len(h.secret) == 0 {
		return false
	}
	header = strings.TrimPrefix(header, "sha256=")
	got, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
