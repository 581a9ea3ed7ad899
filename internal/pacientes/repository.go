package pacientes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinora/clinora/internal/platform/httpx"
	"github.com/clinora/clinora/internal/shared"
)

// Repository persists patients in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p Paciente) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO pacientes (id, medico_id, nome, cpf, telefone, email, created_at, updated_at)
VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),NULLIF($6,''),$7,$8)`, p.ID, p.MedicoID, p.Nome, p.CPF, p.Telefone, p.Email, p.CreatedAt, p.UpdatedAt)
	return mapUnique(err)
}

func (r *Repository) Update(ctx context.Context, p Paciente) error {
	tag, err := r.pool.Exec(ctx, `UPDATE pacientes SET nome=$1, cpf=NULLIF($2,''), telefone=NULLIF($3,''), email=NULLIF($4,''), updated_at=$5
WHERE id=$6 AND medico_id=$7`, p.Nome, p.CPF, p.Telefone, p.Email, p.UpdatedAt, p.ID, p.MedicoID)
	if err != nil {
		return mapUnique(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, medicoID, id uuid.UUID) (Paciente, error) {
	var p Paciente
	err := r.pool.QueryRow(ctx, `SELECT id, medico_id, nome, COALESCE(cpf,''), COALESCE(telefone,''), COALESCE(email,''), COALESCE(asaas_customer_id,''), created_at, updated_at
FROM pacientes WHERE id=$1 AND medico_id=$2`, id, medicoID).
		Scan(&p.ID, &p.MedicoID, &p.Nome, &p.CPF, &p.Telefone, &p.Email, &p.AsaasCustomerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Paciente{}, httpx.ErrNotFound
		}
		return Paciente{}, err
	}
	return p, nil
}

func (r *Repository) List(ctx context.Context, medicoID uuid.UUID, search string, page shared.Page) ([]Paciente, int, error) {
	where := "WHERE medico_id=$1"
	args := []any{medicoID}
	if search != "" {
		args = append(args, "%"+search+"%")
		where += fmt.Sprintf(" AND nome ILIKE $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM pacientes "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT id, medico_id, nome, COALESCE(cpf,''), COALESCE(telefone,''), COALESCE(email,''), COALESCE(asaas_customer_id,''), created_at, updated_at
FROM pacientes %s ORDER BY nome ASC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	pacientes := []Paciente{}
	for rows.Next() {
		var p Paciente
		if err := rows.Scan(&p.ID, &p.MedicoID, &p.Nome, &p.CPF, &p.Telefone, &p.Email, &p.AsaasCustomerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		pacientes = append(pacientes, p)
	}
	return pacientes, total, rows.Err()
}

// ClaimCustomerID sets asaas_customer_id only when it is still NULL, then
// reads back whichever value won. This keeps one provider customer per
// patient even when two charge creations race.
func (r *Repository) ClaimCustomerID(ctx context.Context, medicoID, pacienteID uuid.UUID, customerID string) (string, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE pacientes SET asaas_customer_id=$1, updated_at=NOW()
WHERE id=$2 AND medico_id=$3 AND asaas_customer_id IS NULL`, customerID, pacienteID, medicoID)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 1 {
		return customerID, nil
	}
	var winner string
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(asaas_customer_id,'') FROM pacientes WHERE id=$1 AND medico_id=$2`, pacienteID, medicoID).Scan(&winner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", httpx.ErrNotFound
		}
		return "", err
	}
	if winner == "" {
		return "", errors.New("pacientes: claim raced with a reset")
	}
	return winner, nil
}

func mapUnique(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", httpx.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
