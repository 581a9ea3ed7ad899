package webhook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clinora/clinora/internal/financeiro"
	"github.com/clinora/clinora/internal/platform/httpx"
	"github.com/clinora/clinora/internal/shared"
)

// ChargesPort is the slice of charge persistence the reconciler needs.
type ChargesPort interface {
	GetByReference(ctx context.Context, id uuid.UUID) (financeiro.Cobranca, error)
	ApplyStatus(ctx context.Context, id uuid.UUID, status financeiro.StatusCobranca, paidAt *time.Time) (bool, error)
}

// IdempotencyPort records processed event ids.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

const idempotencyModule = "webhook_asaas"

// Reconciler applies gateway deliveries onto local charges.
type Reconciler struct {
	logger      *slog.Logger
	charges     ChargesPort
	idempotency IdempotencyPort
}

// NewReconciler constructs a Reconciler.
func NewReconciler(logger *slog.Logger, charges ChargesPort, idempotency IdempotencyPort) *Reconciler {
	return &Reconciler{logger: logger, charges: charges, idempotency: idempotency}
}

// Outcome summarizes what a delivery did, for logging and metrics.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Apply processes one delivery. Unknown events, unknown references,
// replayed event ids and already-terminal charges are all acknowledged
// without mutation so the gateway stops retrying.
func (r *Reconciler) Apply(ctx context.Context, event Event) (Outcome, error) {
	status, ok := statusFor(event.Event)
	if !ok {
		r.logger.Info("webhook event ignored", slog.String("event", event.Event))
		return OutcomeIgnored, nil
	}

	chargeID, err := uuid.Parse(event.Payment.ExternalReference)
	if err != nil {
		r.logger.Warn("webhook delivery without a usable reference",
			slog.String("event", event.Event),
			slog.String("external_reference", event.Payment.ExternalReference))
		return OutcomeIgnored, nil
	}

	key := event.ID
	if key == "" {
		key = event.Event + ":" + event.Payment.ID
	}
	if err := r.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return OutcomeDuplicate, nil
		}
		return OutcomeIgnored, err
	}

	cobranca, err := r.charges.GetByReference(ctx, chargeID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			r.logger.Warn("webhook references unknown charge", slog.String("cobranca_id", chargeID.String()))
			return OutcomeIgnored, nil
		}
		// Leave the event replayable; the next delivery retries the lookup.
		_ = r.idempotency.Delete(ctx, key)
		return OutcomeIgnored, err
	}

	var paidAt *time.Time
	if status == financeiro.StatusPago {
		t := event.Payment.paidAt(time.Now().UTC())
		paidAt = &t
	}

	changed, err := r.charges.ApplyStatus(ctx, cobranca.ID, status, paidAt)
	if err != nil {
		_ = r.idempotency.Delete(ctx, key)
		return OutcomeIgnored, err
	}
	if !changed {
		r.logger.Info("webhook on terminal charge ignored",
			slog.String("cobranca_id", cobranca.ID.String()),
			slog.String("status", string(cobranca.Status)))
		return OutcomeIgnored, nil
	}

	r.logger.Info("charge reconciled",
		slog.String("cobranca_id", cobranca.ID.String()),
		slog.String("event", event.Event),
		slog.String("status", string(status)))
	return OutcomeApplied, nil
}
