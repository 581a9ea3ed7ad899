package estoque

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/clinora/clinora/internal/platform/httpx"
	"github.com/clinora/clinora/internal/shared"
)

type memoryRepo struct {
	produtos      map[uuid.UUID]Produto
	lotes         map[uuid.UUID]Lote
	movimentacoes []Movimentacao
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		produtos: make(map[uuid.UUID]Produto),
		lotes:    make(map[uuid.UUID]Lote),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) CreateProduto(ctx context.Context, p Produto) error {
	r.produtos[p.ID] = p
	return nil
}

func (r *memoryRepo) UpdateProduto(ctx context.Context, p Produto) error {
	if _, ok := r.produtos[p.ID]; !ok {
		return httpx.ErrNotFound
	}
	r.produtos[p.ID] = p
	return nil
}

func (r *memoryRepo) GetProduto(ctx context.Context, medicoID, id uuid.UUID) (Produto, error) {
	p, ok := r.produtos[id]
	if !ok || p.MedicoID != medicoID {
		return Produto{}, httpx.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListProdutos(ctx context.Context, medicoID uuid.UUID, abaixoMinimo bool, page shared.Page) ([]Produto, int, error) {
	result := []Produto{}
	for _, p := range r.produtos {
		if p.MedicoID != medicoID {
			continue
		}
		if abaixoMinimo && !p.AbaixoMinimo() {
			continue
		}
		result = append(result, p)
	}
	return result, len(result), nil
}

func (r *memoryRepo) ListMovimentacoes(ctx context.Context, medicoID uuid.UUID, filter MovimentacaoFilter, page shared.Page) ([]Movimentacao, int, error) {
	result := []Movimentacao{}
	for _, m := range r.movimentacoes {
		if m.MedicoID != medicoID {
			continue
		}
		if filter.ProdutoID != nil && m.ProdutoID != *filter.ProdutoID {
			continue
		}
		if filter.Tipo != nil && m.Tipo != *filter.Tipo {
			continue
		}
		result = append(result, m)
	}
	return result, len(result), nil
}

func (r *memoryRepo) GetLote(ctx context.Context, medicoID, id uuid.UUID) (Lote, error) {
	l, ok := r.lotes[id]
	if !ok || l.MedicoID != medicoID {
		return Lote{}, httpx.ErrNotFound
	}
	return l, nil
}

func (r *memoryRepo) ListLotes(ctx context.Context, medicoID uuid.UUID, produtoID *uuid.UUID) ([]Lote, error) {
	result := []Lote{}
	for _, l := range r.lotes {
		if l.MedicoID != medicoID {
			continue
		}
		if produtoID != nil && l.ProdutoID != *produtoID {
			continue
		}
		result = append(result, l)
	}
	return result, nil
}

func (tx *memoryTx) GetProdutoForUpdate(ctx context.Context, medicoID, produtoID uuid.UUID) (Produto, error) {
	return tx.repo.GetProduto(ctx, medicoID, produtoID)
}

func (tx *memoryTx) UpdateSaldoProduto(ctx context.Context, produtoID uuid.UUID, saldo int64) error {
	p := tx.repo.produtos[produtoID]
	p.QuantidadeAtual = saldo
	tx.repo.produtos[produtoID] = p
	return nil
}

func (tx *memoryTx) GetLoteForUpdate(ctx context.Context, medicoID, loteID uuid.UUID) (Lote, error) {
	return tx.repo.GetLote(ctx, medicoID, loteID)
}

func (tx *memoryTx) UpdateQuantidadeLote(ctx context.Context, loteID uuid.UUID, quantidade int64) error {
	l := tx.repo.lotes[loteID]
	l.Quantidade = quantidade
	tx.repo.lotes[loteID] = l
	return nil
}

func (tx *memoryTx) InsertMovimentacao(ctx context.Context, m Movimentacao) error {
	tx.repo.movimentacoes = append(tx.repo.movimentacoes, m)
	return nil
}

func (tx *memoryTx) InsertLote(ctx context.Context, l Lote) error {
	tx.repo.lotes[l.ID] = l
	return nil
}

func (tx *memoryTx) UpdateLote(ctx context.Context, l Lote) error {
	tx.repo.lotes[l.ID] = l
	return nil
}

func (tx *memoryTx) DeleteLote(ctx context.Context, loteID uuid.UUID) error {
	delete(tx.repo.lotes, loteID)
	return nil
}

func criarProduto(t *testing.T, svc *Service, medicoID uuid.UUID) Produto {
	t.Helper()
	produto, err := svc.CriarProduto(context.Background(), medicoID, ProdutoInput{
		Nome:          "Dipirona 500mg",
		EstoqueMinimo: 10,
		PrecoUnitario: decimal.NewFromFloat(4.50),
	})
	require.NoError(t, err)
	return produto
}

func TestRegistrarMovimentacaoSaldo(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	medicoID := uuid.New()
	produto := criarProduto(t, svc, medicoID)

	_, err := svc.RegistrarMovimentacao(ctx, medicoID, MovimentacaoInput{ProdutoID: produto.ID, Tipo: TipoEntrada, Quantidade: 50})
	require.NoError(t, err)
	require.EqualValues(t, 50, repo.produtos[produto.ID].QuantidadeAtual)

	_, err = svc.RegistrarMovimentacao(ctx, medicoID, MovimentacaoInput{ProdutoID: produto.ID, Tipo: TipoSaida, Quantidade: 20})
	require.NoError(t, err)
	require.EqualValues(t, 30, repo.produtos[produto.ID].QuantidadeAtual)

	_, err = svc.RegistrarMovimentacao(ctx, medicoID, MovimentacaoInput{ProdutoID: produto.ID, Tipo: TipoSaida, Quantidade: 40})
	require.ErrorIs(t, err, ErrSaldoInsuficiente)
	require.EqualValues(t, 30, repo.produtos[produto.ID].QuantidadeAtual)
	require.Len(t, repo.movimentacoes, 2)
}

func TestSaldoEqualsSumOfMovements(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	medicoID := uuid.New()
	produto := criarProduto(t, svc, medicoID)

	inputs := []MovimentacaoInput{
		{ProdutoID: produto.ID, Tipo: TipoEntrada, Quantidade: 100},
		{ProdutoID: produto.ID, Tipo: TipoSaida, Quantidade: 30},
		{ProdutoID: produto.ID, Tipo: TipoAjuste, Quantidade: -5},
		{ProdutoID: produto.ID, Tipo: TipoAjuste, Quantidade: 12},
		{ProdutoID: produto.ID, Tipo: TipoSaida, Quantidade: 7},
	}
	for _, input := range inputs {
		_, err := svc.RegistrarMovimentacao(ctx, medicoID, input)
		require.NoError(t, err)
	}

	var soma int64
	for _, m := range repo.movimentacoes {
		soma += m.Delta()
	}
	require.Equal(t, soma, repo.produtos[produto.ID].QuantidadeAtual)
}

func TestAjusteCarriesSign(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	medicoID := uuid.New()
	produto := criarProduto(t, svc, medicoID)

	_, err := svc.RegistrarMovimentacao(ctx, medicoID, MovimentacaoInput{ProdutoID: produto.ID, Tipo: TipoAjuste, Quantidade: 15})
	require.NoError(t, err)
	_, err = svc.RegistrarMovimentacao(ctx, medicoID, MovimentacaoInput{ProdutoID: produto.ID, Tipo: TipoAjuste, Quantidade: -15})
	require.NoError(t, err)
	require.EqualValues(t, 0, repo.produtos[produto.ID].QuantidadeAtual)

	// Negative quantity only means something for AJUSTE.
	_, err = svc.RegistrarMovimentacao(ctx, medicoID, MovimentacaoInput{ProdutoID: produto.ID, Tipo: TipoSaida, Quantidade: -3})
	require.ErrorIs(t, err, ErrQuantidadeInvalida)
}

func TestMovimentacaoComLote(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	medicoID := uuid.New()
	produto := criarProduto(t, svc, medicoID)

	lote, err := svc.CriarLote(ctx, medicoID, LoteInput{
		ProdutoID:    produto.ID,
		NumeroLote:   "L-2026-01",
		Quantidade:   25,
		DataValidade: time.Now().AddDate(1, 0, 0),
	})
	require.NoError(t, err)
	require.EqualValues(t, 25, repo.produtos[produto.ID].QuantidadeAtual)

	_, err = svc.RegistrarMovimentacao(ctx, medicoID, MovimentacaoInput{ProdutoID: produto.ID, LoteID: &lote.ID, Tipo: TipoSaida, Quantidade: 10})
	require.NoError(t, err)
	require.EqualValues(t, 15, repo.lotes[lote.ID].Quantidade)
	require.EqualValues(t, 15, repo.produtos[produto.ID].QuantidadeAtual)

	// Draining past the lot's remaining quantity is rejected, not clamped.
	_, err = svc.RegistrarMovimentacao(ctx, medicoID, MovimentacaoInput{ProdutoID: produto.ID, LoteID: &lote.ID, Tipo: TipoSaida, Quantidade: 16})
	require.ErrorIs(t, err, ErrLoteInsuficiente)
	require.EqualValues(t, 15, repo.lotes[lote.ID].Quantidade)
}

func TestEntradaComLote(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	medicoID := uuid.New()
	produto := criarProduto(t, svc, medicoID)

	lote, err := svc.CriarLote(ctx, medicoID, LoteInput{
		ProdutoID:    produto.ID,
		NumeroLote:   "L-2026-02",
		Quantidade:   25,
		DataValidade: time.Now().AddDate(1, 0, 0),
	})
	require.NoError(t, err)

	// ENTRADA against a lot restocks both the lot and the product balance.
	_, err = svc.RegistrarMovimentacao(ctx, medicoID, MovimentacaoInput{ProdutoID: produto.ID, LoteID: &lote.ID, Tipo: TipoEntrada, Quantidade: 10})
	require.NoError(t, err)
	require.EqualValues(t, 35, repo.lotes[lote.ID].Quantidade)
	require.EqualValues(t, 35, repo.produtos[produto.ID].QuantidadeAtual)
}

func TestLoteDeOutroProduto(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	medicoID := uuid.New()
	produtoA := criarProduto(t, svc, medicoID)
	produtoB := criarProduto(t, svc, medicoID)

	lote, err := svc.CriarLote(ctx, medicoID, LoteInput{ProdutoID: produtoA.ID, Quantidade: 5, DataValidade: time.Now().AddDate(0, 6, 0)})
	require.NoError(t, err)

	_, err = svc.RegistrarMovimentacao(ctx, medicoID, MovimentacaoInput{ProdutoID: produtoB.ID, LoteID: &lote.ID, Tipo: TipoSaida, Quantidade: 1})
	require.ErrorIs(t, err, ErrLoteDeOutroProduto)
}

func TestLoteLifecycleAdjustsSaldo(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	medicoID := uuid.New()
	produto := criarProduto(t, svc, medicoID)

	lote, err := svc.CriarLote(ctx, medicoID, LoteInput{ProdutoID: produto.ID, Quantidade: 40, DataValidade: time.Now().AddDate(0, 3, 0)})
	require.NoError(t, err)
	require.EqualValues(t, 40, repo.produtos[produto.ID].QuantidadeAtual)

	_, err = svc.AtualizarLote(ctx, medicoID, lote.ID, LoteInput{Quantidade: 25})
	require.NoError(t, err)
	require.EqualValues(t, 25, repo.produtos[produto.ID].QuantidadeAtual)

	require.NoError(t, svc.RemoverLote(ctx, medicoID, lote.ID))
	require.EqualValues(t, 0, repo.produtos[produto.ID].QuantidadeAtual)
	require.Empty(t, repo.lotes)
}

func TestTenantIsolation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	dono := uuid.New()
	outro := uuid.New()
	produto := criarProduto(t, svc, dono)

	_, err := svc.RegistrarMovimentacao(ctx, outro, MovimentacaoInput{ProdutoID: produto.ID, Tipo: TipoEntrada, Quantidade: 10})
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.EqualValues(t, 0, repo.produtos[produto.ID].QuantidadeAtual)
}
