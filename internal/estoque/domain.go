// Package estoque implements the stock ledger: products with a guarded
// running balance, expirable lots and an append-only movement log.
package estoque

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TipoMovimentacao enumerates ledger movement kinds.
type TipoMovimentacao string

const (
	// TipoEntrada is an inbound movement, adds to the balance.
	TipoEntrada TipoMovimentacao = "ENTRADA"
	// TipoSaida is an outbound movement, subtracts from the balance.
	TipoSaida TipoMovimentacao = "SAIDA"
	// TipoAjuste is a manual correction carrying a signed quantity.
	TipoAjuste TipoMovimentacao = "AJUSTE"
)

// Valid reports whether the kind is one of the closed set.
func (t TipoMovimentacao) Valid() bool {
	switch t {
	case TipoEntrada, TipoSaida, TipoAjuste:
		return true
	}
	return false
}

// Produto holds a product and its running balance. QuantidadeAtual is
// derived from movements and only ever written inside the same
// transaction as a ledger insert.
type Produto struct {
	ID              uuid.UUID       `json:"id"`
	MedicoID        uuid.UUID       `json:"medico_id"`
	Nome            string          `json:"nome"`
	Descricao       string          `json:"descricao,omitempty"`
	QuantidadeAtual int64           `json:"quantidade_atual"`
	EstoqueMinimo   int64           `json:"estoque_minimo"`
	PrecoUnitario   decimal.Decimal `json:"preco_unitario"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AbaixoMinimo reports whether the balance fell under the threshold.
func (p Produto) AbaixoMinimo() bool {
	return p.QuantidadeAtual < p.EstoqueMinimo
}

// Lote is a dated batch of a product's stock, consumed oldest-expiry first.
type Lote struct {
	ID           uuid.UUID `json:"id"`
	ProdutoID    uuid.UUID `json:"produto_id"`
	MedicoID     uuid.UUID `json:"medico_id"`
	NumeroLote   string    `json:"numero_lote,omitempty"`
	Quantidade   int64     `json:"quantidade"`
	DataValidade time.Time `json:"data_validade"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Movimentacao is one immutable ledger entry. There is no update or
// delete path for movements.
type Movimentacao struct {
	ID               uuid.UUID        `json:"id"`
	MedicoID         uuid.UUID        `json:"medico_id"`
	ProdutoID        uuid.UUID        `json:"produto_id"`
	LoteID           *uuid.UUID       `json:"lote_id,omitempty"`
	Tipo             TipoMovimentacao `json:"tipo_movimentacao"`
	Quantidade       int64            `json:"quantidade"`
	DataMovimentacao time.Time        `json:"data_movimentacao"`
	Observacao       string           `json:"observacao,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Delta returns the signed balance change the movement applies.
// ENTRADA adds, SAIDA subtracts, AJUSTE carries its own sign.
func (m Movimentacao) Delta() int64 {
	switch m.Tipo {
	case TipoSaida:
		return -m.Quantidade
	default:
		return m.Quantidade
	}
}

// MovimentacaoInput describes a movement to record.
type MovimentacaoInput struct {
	ProdutoID        uuid.UUID
	LoteID           *uuid.UUID
	Tipo             TipoMovimentacao
	Quantidade       int64
	DataMovimentacao time.Time
	Observacao       string
}

// MovimentacaoFilter filters the ledger listing.
type MovimentacaoFilter struct {
	ProdutoID *uuid.UUID
	Tipo      *TipoMovimentacao
}

// LoteInput describes a lot to create or update.
type LoteInput struct {
	ProdutoID    uuid.UUID
	NumeroLote   string
	Quantidade   int64
	DataValidade time.Time
}

// ProdutoInput describes a product's descriptive fields. The balance is
// not part of the input: it only moves through the ledger.
type ProdutoInput struct {
	Nome          string
	Descricao     string
	EstoqueMinimo int64
	PrecoUnitario decimal.Decimal
}

// ErrSaldoInsuficiente is returned when a movement would drive the
// product balance negative.
var ErrSaldoInsuficiente = errors.New("estoque: saldo insuficiente")

// ErrLoteInsuficiente is returned when a movement would drive the lot
// quantity negative.
var ErrLoteInsuficiente = errors.New("estoque: quantidade do lote insuficiente")

// ErrQuantidadeInvalida indicates a zero or negative quantity where a
// positive one is required.
var ErrQuantidadeInvalida = errors.New("estoque: quantidade invalida")

// ErrTipoInvalido indicates an unrecognised movement kind.
var ErrTipoInvalido = errors.New("estoque: tipo de movimentacao invalido")

// ErrLoteDeOutroProduto indicates the referenced lot belongs to another product.
var ErrLoteDeOutroProduto = errors.New("estoque: lote nao pertence ao produto")
