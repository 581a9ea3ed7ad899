// Package pacientes holds the patient registry. Billing depends on it for
// the cached payment-provider customer id.
package pacientes

import (
	"time"

	"github.com/google/uuid"
)

// Paciente is a patient record scoped to one tenant.
type Paciente struct {
	ID              uuid.UUID `json:"id"`
	MedicoID        uuid.UUID `json:"medico_id"`
	Nome            string    `json:"nome"`
	CPF             string    `json:"cpf,omitempty"`
	Telefone        string    `json:"telefone,omitempty"`
	Email           string    `json:"email,omitempty"`
	AsaasCustomerID string    `json:"asaas_customer_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PacienteInput describes patient fields writable by the API.
type PacienteInput struct {
	Nome     string
	CPF      string
	Telefone string
	Email    string
}
