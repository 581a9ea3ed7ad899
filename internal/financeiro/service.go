package financeiro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/clinora/clinora/internal/financeiro/asaas"
	"github.com/clinora/clinora/internal/pacientes"
	"github.com/clinora/clinora/internal/platform/httpx"
	"github.com/clinora/clinora/internal/shared"
)

// RepositoryPort abstracts charge persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, c Cobranca) error
	Get(ctx context.Context, medicoID, id uuid.UUID) (Cobranca, error)
	List(ctx context.Context, medicoID uuid.UUID, filter CobrancaFilter, page shared.Page) ([]Cobranca, int, error)
	UpdateLinks(ctx context.Context, medicoID, id uuid.UUID, link string, qr, payload *string) error
	MarkOverdue(ctx context.Context, before time.Time) (int64, error)
}

// GatewayPort is the slice of the payment gateway the service needs.
type GatewayPort interface {
	CreateCustomer(ctx context.Context, apiKey string, input asaas.CustomerInput) (asaas.Customer, error)
	CreateCharge(ctx context.Context, apiKey string, input asaas.ChargeInput) (asaas.Charge, error)
	GetCharge(ctx context.Context, apiKey, chargeID string) (asaas.Charge, error)
	GetPixQrCode(ctx context.Context, apiKey, chargeID string) (asaas.PixQr, error)
}

// PacientesPort is the slice of the patient registry the service needs.
type PacientesPort interface {
	Get(ctx context.Context, medicoID, id uuid.UUID) (pacientes.Paciente, error)
	ClaimCustomerID(ctx context.Context, medicoID, pacienteID uuid.UUID, customerID string) (string, error)
}

// CredentialsPort loads per-tenant gateway credentials.
type CredentialsPort interface {
	Load(ctx context.Context, medicoID uuid.UUID) (Credenciais, error)
}

// JobsPort enqueues background work.
type JobsPort interface {
	EnqueueCompensateCharge(ctx context.Context, medicoID uuid.UUID, asaasID string) error
}

// AuditPort records who changed what.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the charge lifecycle against the gateway.
type Service struct {
	logger      *slog.Logger
	repo        RepositoryPort
	gateway     GatewayPort
	pacientes   PacientesPort
	credentials CredentialsPort
	jobs        JobsPort
	audit       AuditPort
	customers   singleflight.Group
}

// NewService builds Service. jobs and audit may be nil in tests.
func NewService(logger *slog.Logger, repo RepositoryPort, gateway GatewayPort, pac PacientesPort, cred CredentialsPort, jobs JobsPort, audit AuditPort) *Service {
	return &Service{
		logger:      logger,
		repo:        repo,
		gateway:     gateway,
		pacientes:   pac,
		credentials: cred,
		jobs:        jobs,
		audit:       audit,
	}
}

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// CriarCobranca validates the input, guarantees a provider customer for
// the patient and creates the charge at the gateway before persisting it.
// The local id travels as externalReference so webhook deliveries can be
// correlated back. If the local insert fails after the gateway accepted
// the charge, a compensating cancellation is enqueued and the caller gets
// a reconciliation error instead of a silent orphan.
func (s *Service) CriarCobranca(ctx context.Context, medicoID uuid.UUID, input CobrancaInput) (Cobranca, error) {
	if !input.Valor.IsPositive() {
		return Cobranca{}, fmt.Errorf("%w: %s", httpx.ErrValidation, ErrValorInvalido)
	}
	if !input.Metodo.Valid() {
		return Cobranca{}, fmt.Errorf("%w: %s", httpx.ErrValidation, ErrMetodoInvalido)
	}
	hoje := time.Now().UTC().Truncate(24 * time.Hour)
	if input.DataVencimento.Before(hoje) {
		return Cobranca{}, fmt.Errorf("%w: %s", httpx.ErrValidation, ErrVencimentoInvalido)
	}

	paciente, err := s.pacientes.Get(ctx, medicoID, input.PacienteID)
	if err != nil {
		return Cobranca{}, err
	}
	cred, err := s.credentials.Load(ctx, medicoID)
	if err != nil {
		if errors.Is(err, ErrCredenciaisAusentes) {
			return Cobranca{}, fmt.Errorf("%w: %s", httpx.ErrValidation, ErrCredenciaisAusentes)
		}
		return Cobranca{}, err
	}

	customerID, err := s.ensureCustomer(ctx, cred.APIKey, paciente)
	if err != nil {
		return Cobranca{}, err
	}

	descricao := input.Descricao
	if descricao == "" {
		valor, _ := input.Valor.Float64()
		descricao = ptBR.Sprintf("Cobranca no valor de R$ %v", number.Decimal(valor, number.Scale(2)))
	}

	now := time.Now().UTC()
	cobranca := Cobranca{
		ID:             uuid.New(),
		MedicoID:       medicoID,
		PacienteID:     paciente.ID,
		Valor:          input.Valor,
		Descricao:      descricao,
		Metodo:         input.Metodo,
		Status:         StatusPendente,
		DataVencimento: input.DataVencimento,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	valor, _ := input.Valor.Float64()
	created, err := s.gateway.CreateCharge(ctx, cred.APIKey, asaas.ChargeInput{
		Customer:          customerID,
		BillingType:       string(input.Metodo),
		Value:             valor,
		DueDate:           input.DataVencimento.Format("2006-01-02"),
		Description:       descricao,
		ExternalReference: cobranca.ID.String(),
	})
	if err != nil {
		return Cobranca{}, fmt.Errorf("%w: %s", httpx.ErrUpstream, err)
	}
	cobranca.AsaasID = created.ID
	cobranca.LinkPagamento = created.InvoiceURL

	// The QR fetch is best effort. Tenants without a registered PIX key,
	// or a flaky QR endpoint, still get the charge with a null QR.
	if input.Metodo == MetodoPix {
		if cred.PixKey == "" {
			s.logger.Warn("pix key not configured, charge created without qr code",
				slog.String("cobranca_id", cobranca.ID.String()))
		} else if qr, qrErr := s.gateway.GetPixQrCode(ctx, cred.APIKey, created.ID); qrErr != nil {
			s.logger.Warn("pix qr code unavailable",
				slog.String("cobranca_id", cobranca.ID.String()),
				slog.Any("error", qrErr))
		} else {
			cobranca.PixQrCode = &qr.EncodedImage
			cobranca.PixPayload = &qr.Payload
		}
	}

	if err := s.repo.Insert(ctx, cobranca); err != nil {
		s.logger.Error("charge persisted at gateway but not locally",
			slog.String("asaas_id", created.ID),
			slog.Any("error", err))
		if s.jobs != nil {
			if enqErr := s.jobs.EnqueueCompensateCharge(ctx, medicoID, created.ID); enqErr != nil {
				s.logger.Error("enqueue compensation", slog.Any("error", enqErr))
			}
		}
		return Cobranca{}, fmt.Errorf("%w: cobranca %s", httpx.ErrReconciliation, created.ID)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			MedicoID: medicoID.String(),
			Action:   "financeiro:criar_cobranca",
			Entity:   "cobranca",
			EntityID: cobranca.ID.String(),
			Meta: map[string]any{
				"paciente_id": paciente.ID.String(),
				"valor":       input.Valor.String(),
				"metodo":      string(input.Metodo),
			},
		})
	}
	return cobranca, nil
}

// ensureCustomer returns the provider customer id for a patient, creating
// it on first use. Concurrent creations for the same patient collapse into
// one gateway call, and the database claim keeps exactly one id even when
// two instances race.
func (s *Service) ensureCustomer(ctx context.Context, apiKey string, paciente pacientes.Paciente) (string, error) {
	if paciente.AsaasCustomerID != "" {
		return paciente.AsaasCustomerID, nil
	}
	key := paciente.MedicoID.String() + ":" + paciente.ID.String()
	id, err, _ := s.customers.Do(key, func() (any, error) {
		customer, err := s.gateway.CreateCustomer(ctx, apiKey, asaas.CustomerInput{
			Name:    paciente.Nome,
			CpfCnpj: paciente.CPF,
			Email:   paciente.Email,
			Phone:   paciente.Telefone,
		})
		if err != nil {
			return "", fmt.Errorf("%w: %s", httpx.ErrUpstream, err)
		}
		return s.pacientes.ClaimCustomerID(ctx, paciente.MedicoID, paciente.ID, customer.ID)
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

// RegenerarLink refreshes the payment link (and PIX QR) of a pending
// charge from the gateway.
func (s *Service) RegenerarLink(ctx context.Context, medicoID, id uuid.UUID) (Cobranca, error) {
	cobranca, err := s.repo.Get(ctx, medicoID, id)
	if err != nil {
		return Cobranca{}, err
	}
	if cobranca.Status.Terminal() {
		return Cobranca{}, fmt.Errorf("%w: %s", httpx.ErrValidation, ErrStatusTerminal)
	}
	cred, err := s.credentials.Load(ctx, medicoID)
	if err != nil {
		return Cobranca{}, err
	}
	remote, err := s.gateway.GetCharge(ctx, cred.APIKey, cobranca.AsaasID)
	if err != nil {
		return Cobranca{}, fmt.Errorf("%w: %s", httpx.ErrUpstream, err)
	}
	cobranca.LinkPagamento = remote.InvoiceURL
	if cobranca.Metodo == MetodoPix && cred.PixKey != "" {
		if qr, qrErr := s.gateway.GetPixQrCode(ctx, cred.APIKey, cobranca.AsaasID); qrErr == nil {
			cobranca.PixQrCode = &qr.EncodedImage
			cobranca.PixPayload = &qr.Payload
		} else {
			s.logger.Warn("pix qr code unavailable on regenerate",
				slog.String("cobranca_id", cobranca.ID.String()),
				slog.Any("error", qrErr))
		}
	}
	if err := s.repo.UpdateLinks(ctx, medicoID, id, cobranca.LinkPagamento, cobranca.PixQrCode, cobranca.PixPayload); err != nil {
		return Cobranca{}, err
	}
	return cobranca, nil
}

// Get loads one charge scoped to the tenant.
func (s *Service) Get(ctx context.Context, medicoID, id uuid.UUID) (Cobranca, error) {
	return s.repo.Get(ctx, medicoID, id)
}

// Listar lists charges with optional status and patient filters.
func (s *Service) Listar(ctx context.Context, medicoID uuid.UUID, filter CobrancaFilter, page shared.Page) ([]Cobranca, int, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: status desconhecido", httpx.ErrValidation)
	}
	return s.repo.List(ctx, medicoID, filter, page)
}

// SweepVencidas flips pending charges past their due date to VENCIDO.
// Called by the scheduled overdue sweep.
func (s *Service) SweepVencidas(ctx context.Context) (int64, error) {
	return s.repo.MarkOverdue(ctx, time.Now().UTC().Truncate(24*time.Hour))
}
