package estoque

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinora/clinora/internal/platform/db"
	"github.com/clinora/clinora/internal/platform/httpx"
	"github.com/clinora/clinora/internal/shared"
)

const movimentacaoColumns = "id, medico_id, produto_id, lote_id, tipo_movimentacao, quantidade, data_movimentacao, observacao, created_at"

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("estoque repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) CreateProduto(ctx context.Context, p Produto) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO produtos (id, medico_id, nome, descricao, quantidade_atual, estoque_minimo, preco_unitario, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, p.ID, p.MedicoID, p.Nome, p.Descricao, p.QuantidadeAtual, p.EstoqueMinimo, p.PrecoUnitario, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *Repository) UpdateProduto(ctx context.Context, p Produto) error {
	tag, err := r.pool.Exec(ctx, `UPDATE produtos SET nome=$1, descricao=$2, estoque_minimo=$3, preco_unitario=$4, updated_at=$5
WHERE id=$6 AND medico_id=$7`, p.Nome, p.Descricao, p.EstoqueMinimo, p.PrecoUnitario, p.UpdatedAt, p.ID, p.MedicoID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *Repository) GetProduto(ctx context.Context, medicoID, id uuid.UUID) (Produto, error) {
	var p Produto
	err := r.pool.QueryRow(ctx, `SELECT id, medico_id, nome, descricao, quantidade_atual, estoque_minimo, preco_unitario, created_at, updated_at
FROM produtos WHERE id=$1 AND medico_id=$2`, id, medicoID).
		Scan(&p.ID, &p.MedicoID, &p.Nome, &p.Descricao, &p.QuantidadeAtual, &p.EstoqueMinimo, &p.PrecoUnitario, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Produto{}, httpx.ErrNotFound
		}
		return Produto{}, err
	}
	return p, nil
}

func (r *Repository) ListProdutos(ctx context.Context, medicoID uuid.UUID, abaixoMinimo bool, page shared.Page) ([]Produto, int, error) {
	where := "WHERE medico_id=$1"
	if abaixoMinimo {
		where += " AND quantidade_atual < estoque_minimo"
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM produtos "+where, medicoID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT id, medico_id, nome, descricao, quantidade_atual, estoque_minimo, preco_unitario, created_at, updated_at
FROM produtos %s ORDER BY nome ASC LIMIT $2 OFFSET $3`, where), medicoID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	produtos := []Produto{}
	for rows.Next() {
		var p Produto
		if err := rows.Scan(&p.ID, &p.MedicoID, &p.Nome, &p.Descricao, &p.QuantidadeAtual, &p.EstoqueMinimo, &p.PrecoUnitario, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		produtos = append(produtos, p)
	}
	return produtos, total, rows.Err()
}

func (r *Repository) ListMovimentacoes(ctx context.Context, medicoID uuid.UUID, filter MovimentacaoFilter, page shared.Page) ([]Movimentacao, int, error) {
	where := "WHERE medico_id=$1"
	args := []any{medicoID}
	if filter.ProdutoID != nil {
		args = append(args, *filter.ProdutoID)
		where += fmt.Sprintf(" AND produto_id=$%d", len(args))
	}
	if filter.Tipo != nil {
		args = append(args, string(*filter.Tipo))
		where += fmt.Sprintf(" AND tipo_movimentacao=$%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM movimentacoes "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT `+movimentacaoColumns+`
FROM movimentacoes %s ORDER BY data_movimentacao DESC, created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	movs := []Movimentacao{}
	for rows.Next() {
		var m Movimentacao
		if err := rows.Scan(&m.ID, &m.MedicoID, &m.ProdutoID, &m.LoteID, &m.Tipo, &m.Quantidade, &m.DataMovimentacao, &m.Observacao, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		movs = append(movs, m)
	}
	return movs, total, rows.Err()
}

func (r *Repository) GetLote(ctx context.Context, medicoID, id uuid.UUID) (Lote, error) {
	var l Lote
	err := r.pool.QueryRow(ctx, `SELECT id, produto_id, medico_id, numero_lote, quantidade, data_validade, created_at, updated_at
FROM lotes WHERE id=$1 AND medico_id=$2`, id, medicoID).
		Scan(&l.ID, &l.ProdutoID, &l.MedicoID, &l.NumeroLote, &l.Quantidade, &l.DataValidade, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lote{}, httpx.ErrNotFound
		}
		return Lote{}, err
	}
	return l, nil
}

// ListLotes orders by expiry ascending so the caller consumes the
// oldest-expiring batch first.
func (r *Repository) ListLotes(ctx context.Context, medicoID uuid.UUID, produtoID *uuid.UUID) ([]Lote, error) {
	query := `SELECT id, produto_id, medico_id, numero_lote, quantidade, data_validade, created_at, updated_at
FROM lotes WHERE medico_id=$1`
	args := []any{medicoID}
	if produtoID != nil {
		query += " AND produto_id=$2"
		args = append(args, *produtoID)
	}
	query += " ORDER BY data_validade ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lotes := []Lote{}
	for rows.Next() {
		var l Lote
		if err := rows.Scan(&l.ID, &l.ProdutoID, &l.MedicoID, &l.NumeroLote, &l.Quantidade, &l.DataValidade, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lotes = append(lotes, l)
	}
	return lotes, rows.Err()
}

func (r *txRepository) GetProdutoForUpdate(ctx context.Context, medicoID, produtoID uuid.UUID) (Produto, error) {
	var p Produto
	err := r.tx.QueryRow(ctx, `SELECT id, medico_id, nome, descricao, quantidade_atual, estoque_minimo, preco_unitario, created_at, updated_at
FROM produtos WHERE id=$1 AND medico_id=$2 FOR UPDATE`, produtoID, medicoID).
		Scan(&p.ID, &p.MedicoID, &p.Nome, &p.Descricao, &p.QuantidadeAtual, &p.EstoqueMinimo, &p.PrecoUnitario, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Produto{}, httpx.ErrNotFound
		}
		return Produto{}, err
	}
	return p, nil
}

func (r *txRepository) UpdateSaldoProduto(ctx context.Context, produtoID uuid.UUID, saldo int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE produtos SET quantidade_atual=$1, updated_at=NOW() WHERE id=$2`, saldo, produtoID)
	return err
}

func (r *txRepository) GetLoteForUpdate(ctx context.Context, medicoID, loteID uuid.UUID) (Lote, error) {
	var l Lote
	err := r.tx.QueryRow(ctx, `SELECT id, produto_id, medico_id, numero_lote, quantidade, data_validade, created_at, updated_at
FROM lotes WHERE id=$1 AND medico_id=$2 FOR UPDATE`, loteID, medicoID).
		Scan(&l.ID, &l.ProdutoID, &l.MedicoID, &l.NumeroLote, &l.Quantidade, &l.DataValidade, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lote{}, httpx.ErrNotFound
		}
		return Lote{}, err
	}
	return l, nil
}

func (r *txRepository) UpdateQuantidadeLote(ctx context.Context, loteID uuid.UUID, quantidade int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE lotes SET quantidade=$1, updated_at=NOW() WHERE id=$2`, quantidade, loteID)
	return err
}

func (r *txRepository) InsertMovimentacao(ctx context.Context, m Movimentacao) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO movimentacoes (`+movimentacaoColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, m.ID, m.MedicoID, m.ProdutoID, m.LoteID, string(m.Tipo), m.Quantidade, m.DataMovimentacao, m.Observacao, m.CreatedAt)
	return err
}

func (r *txRepository) InsertLote(ctx context.Context, l Lote) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO lotes (id, produto_id, medico_id, numero_lote, quantidade, data_validade, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, l.ID, l.ProdutoID, l.MedicoID, l.NumeroLote, l.Quantidade, l.DataValidade, l.CreatedAt, l.UpdatedAt)
	return err
}

func (r *txRepository) UpdateLote(ctx context.Context, l Lote) error {
	_, err := r.tx.Exec(ctx, `UPDATE lotes SET numero_lote=$1, quantidade=$2, data_validade=$3, updated_at=$4 WHERE id=$5`, l.NumeroLote, l.Quantidade, l.DataValidade, l.UpdatedAt, l.ID)
	return err
}

func (r *txRepository) DeleteLote(ctx context.Context, loteID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM lotes WHERE id=$1`, loteID)
	return err
}
