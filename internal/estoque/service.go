package estoque

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinora/clinora/internal/platform/httpx"
	"github.com/clinora/clinora/internal/shared"
)

// TxRepository exposes the operations that must share one transaction.
// Balance reads lock the row so concurrent movements serialize.
type TxRepository interface {
	GetProdutoForUpdate(ctx context.Context, medicoID, produtoID uuid.UUID) (Produto, error)
	UpdateSaldoProduto(ctx context.Context, produtoID uuid.UUID, saldo int64) error
	GetLoteForUpdate(ctx context.Context, medicoID, loteID uuid.UUID) (Lote, error)
	UpdateQuantidadeLote(ctx context.Context, loteID uuid.UUID, quantidade int64) error
	InsertMovimentacao(ctx context.Context, mov Movimentacao) error
	InsertLote(ctx context.Context, lote Lote) error
	UpdateLote(ctx context.Context, lote Lote) error
	DeleteLote(ctx context.Context, loteID uuid.UUID) error
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateProduto(ctx context.Context, p Produto) error
	UpdateProduto(ctx context.Context, p Produto) error
	GetProduto(ctx context.Context, medicoID, id uuid.UUID) (Produto, error)
	ListProdutos(ctx context.Context, medicoID uuid.UUID, abaixoMinimo bool, page shared.Page) ([]Produto, int, error)
	ListMovimentacoes(ctx context.Context, medicoID uuid.UUID, filter MovimentacaoFilter, page shared.Page) ([]Movimentacao, int, error)
	GetLote(ctx context.Context, medicoID, id uuid.UUID) (Lote, error)
	ListLotes(ctx context.Context, medicoID uuid.UUID, produtoID *uuid.UUID) ([]Lote, error)
}

// AuditPort records who changed what.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CriarProduto creates a product with a zero balance.
func (s *Service) CriarProduto(ctx context.Context, medicoID uuid.UUID, input ProdutoInput) (Produto, error) {
	if strings.TrimSpace(input.Nome) == "" {
		return Produto{}, fmt.Errorf("%w: nome obrigatorio", httpx.ErrValidation)
	}
	if input.EstoqueMinimo < 0 {
		return Produto{}, fmt.Errorf("%w: estoque minimo nao pode ser negativo", httpx.ErrValidation)
	}
	if input.PrecoUnitario.IsNegative() {
		return Produto{}, fmt.Errorf("%w: preco nao pode ser negativo", httpx.ErrValidation)
	}
	now := time.Now().UTC()
	produto := Produto{
		ID:            uuid.New(),
		MedicoID:      medicoID,
		Nome:          strings.TrimSpace(input.Nome),
		Descricao:     input.Descricao,
		EstoqueMinimo: input.EstoqueMinimo,
		PrecoUnitario: input.PrecoUnitario,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateProduto(ctx, produto); err != nil {
		return Produto{}, err
	}
	return produto, nil
}

// AtualizarProduto updates descriptive fields. The balance is not
// writable here; it only moves through the ledger.
func (s *Service) AtualizarProduto(ctx context.Context, medicoID, id uuid.UUID, input ProdutoInput) (Produto, error) {
	produto, err := s.repo.GetProduto(ctx, medicoID, id)
	if err != nil {
		return Produto{}, err
	}
	if strings.TrimSpace(input.Nome) != "" {
		produto.Nome = strings.TrimSpace(input.Nome)
	}
	produto.Descricao = input.Descricao
	if input.EstoqueMinimo >= 0 {
		produto.EstoqueMinimo = input.EstoqueMinimo
	}
	if !input.PrecoUnitario.IsNegative() {
		produto.PrecoUnitario = input.PrecoUnitario
	}
	produto.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateProduto(ctx, produto); err != nil {
		return Produto{}, err
	}
	return produto, nil
}

// GetProduto loads one product scoped to the tenant.
func (s *Service) GetProduto(ctx context.Context, medicoID, id uuid.UUID) (Produto, error) {
	return s.repo.GetProduto(ctx, medicoID, id)
}

// ListarProdutos lists products, optionally only those under the minimum.
func (s *Service) ListarProdutos(ctx context.Context, medicoID uuid.UUID, abaixoMinimo bool, page shared.Page) ([]Produto, int, error) {
	return s.repo.ListProdutos(ctx, medicoID, abaixoMinimo, page)
}

// RegistrarMovimentacao validates, appends the ledger entry and applies
// the signed delta to the product (and lot) balance in one transaction.
// Either everything commits or nothing does.
func (s *Service) RegistrarMovimentacao(ctx context.Context, medicoID uuid.UUID, input MovimentacaoInput) (Movimentacao, error) {
	if !input.Tipo.Valid() {
		return Movimentacao{}, ErrTipoInvalido
	}
	if input.Quantidade == 0 {
		return Movimentacao{}, ErrQuantidadeInvalida
	}
	// Only AJUSTE may carry a signed quantity.
	if input.Quantidade < 0 && input.Tipo != TipoAjuste {
		return Movimentacao{}, ErrQuantidadeInvalida
	}
	if input.ProdutoID == uuid.Nil {
		return Movimentacao{}, fmt.Errorf("%w: produto_id obrigatorio", httpx.ErrValidation)
	}

	now := time.Now().UTC()
	ocorridaEm := input.DataMovimentacao
	if ocorridaEm.IsZero() {
		ocorridaEm = now
	}
	mov := Movimentacao{
		ID:               uuid.New(),
		MedicoID:         medicoID,
		ProdutoID:        input.ProdutoID,
		LoteID:           input.LoteID,
		Tipo:             input.Tipo,
		Quantidade:       input.Quantidade,
		DataMovimentacao: ocorridaEm,
		Observacao:       input.Observacao,
		CreatedAt:        now,
	}

	var saldoFinal int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		produto, err := tx.GetProdutoForUpdate(ctx, medicoID, input.ProdutoID)
		if err != nil {
			return err
		}
		novoSaldo := produto.QuantidadeAtual + mov.Delta()
		if novoSaldo < 0 {
			return ErrSaldoInsuficiente
		}
		if input.LoteID != nil {
			lote, err := tx.GetLoteForUpdate(ctx, medicoID, *input.LoteID)
			if err != nil {
				return err
			}
			if lote.ProdutoID != produto.ID {
				return ErrLoteDeOutroProduto
			}
			novaQtdLote := lote.Quantidade + mov.Delta()
			if novaQtdLote < 0 {
				return ErrLoteInsuficiente
			}
			if err := tx.UpdateQuantidadeLote(ctx, lote.ID, novaQtdLote); err != nil {
				return err
			}
		}
		if err := tx.InsertMovimentacao(ctx, mov); err != nil {
			return err
		}
		if err := tx.UpdateSaldoProduto(ctx, produto.ID, novoSaldo); err != nil {
			return err
		}
		saldoFinal = novoSaldo
		return nil
	})
	if err != nil {
		return Movimentacao{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			MedicoID: medicoID.String(),
			Action:   fmt.Sprintf("estoque:%s", mov.Tipo),
			Entity:   "movimentacao",
			EntityID: mov.ID.String(),
			Meta: map[string]any{
				"produto_id": mov.ProdutoID.String(),
				"quantidade": mov.Quantidade,
				"saldo":      saldoFinal,
			},
		})
	}
	return mov, nil
}

// ListarMovimentacoes lists ledger entries, newest first.
func (s *Service) ListarMovimentacoes(ctx context.Context, medicoID uuid.UUID, filter MovimentacaoFilter, page shared.Page) ([]Movimentacao, int, error) {
	if filter.Tipo != nil && !filter.Tipo.Valid() {
		return nil, 0, ErrTipoInvalido
	}
	return s.repo.ListMovimentacoes(ctx, medicoID, filter, page)
}

// CriarLote registers a received batch and adds its quantity to the
// product balance in the same transaction.
func (s *Service) CriarLote(ctx context.Context, medicoID uuid.UUID, input LoteInput) (Lote, error) {
	if input.ProdutoID == uuid.Nil {
		return Lote{}, fmt.Errorf("%w: produto_id obrigatorio", httpx.ErrValidation)
	}
	if input.Quantidade <= 0 {
		return Lote{}, ErrQuantidadeInvalida
	}
	if input.DataValidade.IsZero() {
		return Lote{}, fmt.Errorf("%w: data_validade obrigatoria", httpx.ErrValidation)
	}
	now := time.Now().UTC()
	lote := Lote{
		ID:           uuid.New(),
		ProdutoID:    input.ProdutoID,
		MedicoID:     medicoID,
		NumeroLote:   input.NumeroLote,
		Quantidade:   input.Quantidade,
		DataValidade: input.DataValidade,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		produto, err := tx.GetProdutoForUpdate(ctx, medicoID, input.ProdutoID)
		if err != nil {
			return err
		}
		if err := tx.InsertLote(ctx, lote); err != nil {
			return err
		}
		return tx.UpdateSaldoProduto(ctx, produto.ID, produto.QuantidadeAtual+lote.Quantidade)
	})
	if err != nil {
		return Lote{}, err
	}
	return lote, nil
}

// AtualizarLote changes a lot and applies the quantity delta to the
// product balance in the same transaction.
func (s *Service) AtualizarLote(ctx context.Context, medicoID, loteID uuid.UUID, input LoteInput) (Lote, error) {
	if input.Quantidade < 0 {
		return Lote{}, ErrQuantidadeInvalida
	}
	var atualizado Lote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lote, err := tx.GetLoteForUpdate(ctx, medicoID, loteID)
		if err != nil {
			return err
		}
		produto, err := tx.GetProdutoForUpdate(ctx, medicoID, lote.ProdutoID)
		if err != nil {
			return err
		}
		delta := input.Quantidade - lote.Quantidade
		novoSaldo := produto.QuantidadeAtual + delta
		if novoSaldo < 0 {
			return ErrSaldoInsuficiente
		}
		lote.Quantidade = input.Quantidade
		if input.NumeroLote != "" {
			lote.NumeroLote = input.NumeroLote
		}
		if !input.DataValidade.IsZero() {
			lote.DataValidade = input.DataValidade
		}
		lote.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateLote(ctx, lote); err != nil {
			return err
		}
		if err := tx.UpdateSaldoProduto(ctx, produto.ID, novoSaldo); err != nil {
			return err
		}
		atualizado = lote
		return nil
	})
	if err != nil {
		return Lote{}, err
	}
	return atualizado, nil
}

// RemoverLote deletes a lot, subtracting its remaining quantity from the
// product balance in the same transaction.
func (s *Service) RemoverLote(ctx context.Context, medicoID, loteID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lote, err := tx.GetLoteForUpdate(ctx, medicoID, loteID)
		if err != nil {
			return err
		}
		produto, err := tx.GetProdutoForUpdate(ctx, medicoID, lote.ProdutoID)
		if err != nil {
			return err
		}
		novoSaldo := produto.QuantidadeAtual - lote.Quantidade
		if novoSaldo < 0 {
			return ErrSaldoInsuficiente
		}
		if err := tx.DeleteLote(ctx, lote.ID); err != nil {
			return err
		}
		return tx.UpdateSaldoProduto(ctx, produto.ID, novoSaldo)
	})
}

// ListarLotes lists lots ordered by expiry date (oldest first, FEFO).
func (s *Service) ListarLotes(ctx context.Context, medicoID uuid.UUID, produtoID *uuid.UUID) ([]Lote, error) {
	return s.repo.ListLotes(ctx, medicoID, produtoID)
}
