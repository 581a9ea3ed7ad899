package financeiro

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinora/clinora/internal/platform/httpx"
	"github.com/clinora/clinora/internal/shared"
)

// Repository persists charges in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const cobrancaColumns = `id, medico_id, paciente_id, COALESCE(asaas_id,''), valor, descricao, metodo_pagamento, status,
data_vencimento, COALESCE(link_pagamento,''), pix_qr_code, pix_payload, data_pagamento, created_at, updated_at`

func scanCobranca(row pgx.Row) (Cobranca, error) {
	var c Cobranca
	err := row.Scan(&c.ID, &c.MedicoID, &c.PacienteID, &c.AsaasID, &c.Valor, &c.Descricao, &c.Metodo, &c.Status,
		&c.DataVencimento, &c.LinkPagamento, &c.PixQrCode, &c.PixPayload, &c.DataPagamento, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *Repository) Insert(ctx context.Context, c Cobranca) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO cobrancas
(id, medico_id, paciente_id, asaas_id, valor, descricao, metodo_pagamento, status, data_vencimento, link_pagamento, pix_qr_code, pix_payload, created_at, updated_at)
VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8,$9,NULLIF($10,''),$11,$12,$13,$14)`,
		c.ID, c.MedicoID, c.PacienteID, c.AsaasID, c.Valor, c.Descricao, c.Metodo, c.Status,
		c.DataVencimento, c.LinkPagamento, c.PixQrCode, c.PixPayload, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *Repository) Get(ctx context.Context, medicoID, id uuid.UUID) (Cobranca, error) {
	c, err := scanCobranca(r.pool.QueryRow(ctx,
		`SELECT `+cobrancaColumns+` FROM cobrancas WHERE id=$1 AND medico_id=$2`, id, medicoID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cobranca{}, httpx.ErrNotFound
		}
		return Cobranca{}, err
	}
	return c, nil
}

// GetByReference resolves a charge by its local id without tenant scoping.
// Webhook deliveries carry the id as externalReference and no tenant token.
func (r *Repository) GetByReference(ctx context.Context, id uuid.UUID) (Cobranca, error) {
	c, err := scanCobranca(r.pool.QueryRow(ctx,
		`SELECT `+cobrancaColumns+` FROM cobrancas WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cobranca{}, httpx.ErrNotFound
		}
		return Cobranca{}, err
	}
	return c, nil
}

func (r *Repository) List(ctx context.Context, medicoID uuid.UUID, filter CobrancaFilter, page shared.Page) ([]Cobranca, int, error) {
	where := "WHERE medico_id=$1"
	args := []any{medicoID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if filter.PacienteID != nil {
		args = append(args, *filter.PacienteID)
		where += fmt.Sprintf(" AND paciente_id=$%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM cobrancas "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT `+cobrancaColumns+` FROM cobrancas %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	cobrancas := []Cobranca{}
	for rows.Next() {
		c, err := scanCobranca(rows)
		if err != nil {
			return nil, 0, err
		}
		cobrancas = append(cobrancas, c)
	}
	return cobrancas, total, rows.Err()
}

func (r *Repository) UpdateLinks(ctx context.Context, medicoID, id uuid.UUID, link string, qr, payload *string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE cobrancas SET link_pagamento=NULLIF($1,''), pix_qr_code=$2, pix_payload=$3, updated_at=NOW()
WHERE id=$4 AND medico_id=$5`, link, qr, payload, id, medicoID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// ApplyStatus transitions a pending charge. Terminal rows are left alone
// so replayed or reopening deliveries cannot rewrite history. Returns
// whether a row actually changed.
func (r *Repository) ApplyStatus(ctx context.Context, id uuid.UUID, status StatusCobranca, paidAt *time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE cobrancas SET status=$1, data_pagamento=$2, updated_at=NOW()
WHERE id=$3 AND status=$4`, status, paidAt, id, StatusPendente)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkOverdue flips pending charges due strictly before the cutoff.
func (r *Repository) MarkOverdue(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE cobrancas SET status=$1, updated_at=NOW()
WHERE status=$2 AND data_vencimento < $3`, StatusVencido, StatusPendente, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
