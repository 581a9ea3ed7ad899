// Package webhook receives payment-gateway deliveries and reconciles
// charge status. Deliveries are authenticated by HMAC over the raw body,
// deduplicated by provider event id and applied at most once.
package webhook

import (
	"time"

	"github.com/clinora/clinora/internal/financeiro"
)

// Event is the gateway delivery envelope.
type Event struct {
	ID      string  `json:"id"`
	Event   string  `json:"event"`
	Payment Payment `json:"payment"`
}

// Payment is the charge snapshot inside a delivery. ExternalReference
// carries the local charge id assigned at creation.
type Payment struct {
	ID                string  `json:"id"`
	ExternalReference string  `json:"externalReference"`
	Status            string  `json:"status"`
	Value             float64 `json:"value"`
	PaymentDate       string  `json:"paymentDate"`
	ClientPaymentDate string  `json:"clientPaymentDate"`
	DateCreated       string  `json:"dateCreated"`
}

// statusFor maps a gateway event name onto the local lifecycle. The second
// return is false for events that are acknowledged but not applied.
func statusFor(event string) (financeiro.StatusCobranca, bool) {
	switch event {
	case "PAYMENT_RECEIVED", "PAYMENT_CONFIRMED", "PAYMENT_CONFIRMED_BY_BANK":
		return financeiro.StatusPago, true
	case "PAYMENT_OVERDUE":
		return financeiro.StatusVencido, true
	case "PAYMENT_DELETED", "PAYMENT_CANCELED", "PAYMENT_REFUNDED":
		return financeiro.StatusCancelado, true
	}
	return "", false
}

// paidAt resolves the payment timestamp from the payload, most specific
// first, falling back to the processing time.
func (p Payment) paidAt(now time.Time) time.Time {
	for _, raw := range []string{p.PaymentDate, p.ClientPaymentDate, p.DateCreated} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return now
}
