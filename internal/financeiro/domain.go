// Package financeiro manages charges and their reconciliation against the
// payment gateway. A charge is born PENDENTE and only webhook deliveries or
// the overdue sweep move it; PAGO, VENCIDO and CANCELADO are terminal.
package financeiro

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatusCobranca is the lifecycle state of a charge.
type StatusCobranca string

const (
	StatusPendente  StatusCobranca = "PENDENTE"
	StatusPago      StatusCobranca = "PAGO"
	StatusVencido   StatusCobranca = "VENCIDO"
	StatusCancelado StatusCobranca = "CANCELADO"
)

// Valid reports whether the status is a known lifecycle state.
func (s StatusCobranca) Valid() bool {
	switch s {
	case StatusPendente, StatusPago, StatusVencido, StatusCancelado:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s StatusCobranca) Terminal() bool {
	return s == StatusPago || s == StatusVencido || s == StatusCancelado
}

// MetodoPagamento is the billing type sent to the gateway.
type MetodoPagamento string

const (
	MetodoPix        MetodoPagamento = "PIX"
	MetodoBoleto     MetodoPagamento = "BOLETO"
	MetodoCartao     MetodoPagamento = "CREDIT_CARD"
	MetodoIndefinido MetodoPagamento = "UNDEFINED"
)

// Valid reports whether the payment method is accepted.
func (m MetodoPagamento) Valid() bool {
	switch m {
	case MetodoPix, MetodoBoleto, MetodoCartao, MetodoIndefinido:
		return true
	}
	return false
}

// Cobranca is a charge scoped to one tenant. AsaasID links the provider
// record; PixQrCode stays nil when the QR fetch degraded.
type Cobranca struct {
	ID             uuid.UUID       `json:"id"`
	MedicoID       uuid.UUID       `json:"medico_id"`
	PacienteID     uuid.UUID       `json:"paciente_id"`
	AsaasID        string          `json:"asaas_id,omitempty"`
	Valor          decimal.Decimal `json:"valor"`
	Descricao      string          `json:"descricao"`
	Metodo         MetodoPagamento `json:"metodo_pagamento"`
	Status         StatusCobranca  `json:"status"`
	DataVencimento time.Time       `json:"data_vencimento"`
	LinkPagamento  string          `json:"link_pagamento,omitempty"`
	PixQrCode      *string         `json:"pix_qr_code"`
	PixPayload     *string         `json:"pix_payload,omitempty"`
	DataPagamento  *time.Time      `json:"data_pagamento,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CobrancaInput describes the writable fields of a new charge.
type CobrancaInput struct {
	PacienteID     uuid.UUID
	Valor          decimal.Decimal
	Descricao      string
	Metodo         MetodoPagamento
	DataVencimento time.Time
}

// CobrancaFilter narrows charge listings.
type CobrancaFilter struct {
	Status     *StatusCobranca
	PacienteID *uuid.UUID
}

// Domain errors surfaced by the service layer.
var (
	ErrValorInvalido       = errors.New("valor deve ser maior que zero")
	ErrVencimentoInvalido  = errors.New("data de vencimento deve ser futura")
	ErrMetodoInvalido      = errors.New("metodo de pagamento invalido")
	ErrStatusTerminal      = errors.New("cobranca em estado terminal")
	ErrCredenciaisAusentes = errors.New("credenciais do provedor nao configuradas")
)
