// Package jobs holds the background worker: compensating cancellations
// for half-created charges, the overdue sweep and idempotency cleanup.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/clinora/clinora/internal/financeiro"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskChargeCompensate cancels a gateway charge whose local insert failed.
	TaskChargeCompensate = "charge:compensate"
	// TaskOverdueSweep flips pending charges past their due date to VENCIDO.
	TaskOverdueSweep = "charge:overdue_sweep"
	// TaskIdempotencyCleanup prunes old processed webhook event ids.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// CompensateChargePayload identifies the orphaned gateway charge.
type CompensateChargePayload struct {
	MedicoID string `json:"medico_id"`
	AsaasID  string `json:"asaas_id"`
}

// NewCompensateChargeTask constructs an Asynq task.
func NewCompensateChargeTask(payload CompensateChargePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChargeCompensate, data), nil
}

// NewOverdueSweepTask constructs the scheduled sweep task.
func NewOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskOverdueSweep, nil)
}

// NewIdempotencyCleanupTask constructs the scheduled cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// GatewayCanceler is the slice of the payment gateway compensation needs.
type GatewayCanceler interface {
	CancelCharge(ctx context.Context, apiKey, chargeID string) error
}

// CredentialsLoader loads per-tenant gateway credentials.
type CredentialsLoader interface {
	Load(ctx context.Context, medicoID uuid.UUID) (financeiro.Credenciais, error)
}

// CompensateChargeJob cancels gateway charges that have no local row.
// Failures are retried by Asynq with its default backoff.
type CompensateChargeJob struct {
	gateway     GatewayCanceler
	credentials CredentialsLoader
	logger      *slog.Logger
}

// NewCompensateChargeJob constructs the job.
func NewCompensateChargeJob(gateway GatewayCanceler, credentials CredentialsLoader, logger *slog.Logger) *CompensateChargeJob {
	return &CompensateChargeJob{gateway: gateway, credentials: credentials, logger: logger}
}

// Handle processes TaskChargeCompensate tasks.
func (j *CompensateChargeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload CompensateChargePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	medicoID, err := uuid.Parse(payload.MedicoID)
	if err != nil {
		return asynq.SkipRetry
	}
	cred, err := j.credentials.Load(ctx, medicoID)
	if err != nil {
		return err
	}
	if err := j.gateway.CancelCharge(ctx, cred.APIKey, payload.AsaasID); err != nil {
		return err
	}
	j.logger.Info("orphaned charge cancelled at gateway",
		slog.String("asaas_id", payload.AsaasID),
		slog.String("medico_id", payload.MedicoID))
	return nil
}

// Sweeper flips overdue charges.
type Sweeper interface {
	SweepVencidas(ctx context.Context) (int64, error)
}

// OverdueSweepJob runs the daily due-date sweep.
type OverdueSweepJob struct {
	sweeper Sweeper
	logger  *slog.Logger
}

// NewOverdueSweepJob constructs the job.
func NewOverdueSweepJob(sweeper Sweeper, logger *slog.Logger) *OverdueSweepJob {
	return &OverdueSweepJob{sweeper: sweeper, logger: logger}
}

// Handle processes TaskOverdueSweep tasks.
func (j *OverdueSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	n, err := j.sweeper.SweepVencidas(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		j.logger.Info("overdue sweep finished", slog.Int64("marked", n))
	}
	return nil
}

// IdempotencyCleaner prunes processed keys.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

const idempotencyRetention = 30 * 24 * time.Hour

// IdempotencyCleanupJob prunes webhook event ids past the retention window.
// The gateway stops retrying deliveries long before that.
type IdempotencyCleanupJob struct {
	store  IdempotencyCleaner
	logger *slog.Logger
}

// NewIdempotencyCleanupJob constructs the job.
func NewIdempotencyCleanupJob(store IdempotencyCleaner, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if err := j.store.Cleanup(ctx, idempotencyRetention); err != nil {
		return err
	}
	j.logger.Info("idempotency cleanup finished")
	return nil
}
