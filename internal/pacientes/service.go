package pacientes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinora/clinora/internal/platform/httpx"
	"github.com/clinora/clinora/internal/shared"
)

// RepositoryPort abstracts patient persistence.
type RepositoryPort interface {
	Create(ctx context.Context, p Paciente) error
	Update(ctx context.Context, p Paciente) error
	Get(ctx context.Context, medicoID, id uuid.UUID) (Paciente, error)
	List(ctx context.Context, medicoID uuid.UUID, search string, page shared.Page) ([]Paciente, int, error)
	ClaimCustomerID(ctx context.Context, medicoID, pacienteID uuid.UUID, customerID string) (string, error)
}

// Service coordinates patient operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Criar registers a patient. Duplicate CPF or telefone within the tenant
// surfaces as a conflict.
func (s *Service) Criar(ctx context.Context, medicoID uuid.UUID, input PacienteInput) (Paciente, error) {
	if strings.TrimSpace(input.Nome) == "" {
		return Paciente{}, fmt.Errorf("%w: nome obrigatorio", httpx.ErrValidation)
	}
	now := time.Now().UTC()
	paciente := Paciente{
		ID:        uuid.New(),
		MedicoID:  medicoID,
		Nome:      strings.TrimSpace(input.Nome),
		CPF:       strings.TrimSpace(input.CPF),
		Telefone:  strings.TrimSpace(input.Telefone),
		Email:     strings.TrimSpace(input.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, paciente); err != nil {
		return Paciente{}, err
	}
	return paciente, nil
}

// Atualizar updates contact fields.
func (s *Service) Atualizar(ctx context.Context, medicoID, id uuid.UUID, input PacienteInput) (Paciente, error) {
	paciente, err := s.repo.Get(ctx, medicoID, id)
	if err != nil {
		return Paciente{}, err
	}
	if strings.TrimSpace(input.Nome) != "" {
		paciente.Nome = strings.TrimSpace(input.Nome)
	}
	if input.CPF != "" {
		paciente.CPF = strings.TrimSpace(input.CPF)
	}
	if input.Telefone != "" {
		paciente.Telefone = strings.TrimSpace(input.Telefone)
	}
	if input.Email != "" {
		paciente.Email = strings.TrimSpace(input.Email)
	}
	paciente.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, paciente); err != nil {
		return Paciente{}, err
	}
	return paciente, nil
}

// Get loads one patient scoped to the tenant.
func (s *Service) Get(ctx context.Context, medicoID, id uuid.UUID) (Paciente, error) {
	return s.repo.Get(ctx, medicoID, id)
}

// Listar lists patients with optional name search.
func (s *Service) Listar(ctx context.Context, medicoID uuid.UUID, search string, page shared.Page) ([]Paciente, int, error) {
	return s.repo.List(ctx, medicoID, search, page)
}

// ClaimCustomerID stores the provider customer id if the patient has none
// yet, returning whichever id ends up cached. Concurrent claimers all get
// the winner's id.
func (s *Service) ClaimCustomerID(ctx context.Context, medicoID, pacienteID uuid.UUID, customerID string) (string, error) {
	if customerID == "" {
		return "", fmt.Errorf("%w: customer id vazio", httpx.ErrValidation)
	}
	return s.repo.ClaimCustomerID(ctx, medicoID, pacienteID, customerID)
}
