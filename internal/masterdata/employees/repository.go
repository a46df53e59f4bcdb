package employees

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context) ([]Employee, error)
	Get(ctx context.Context, id int64) (Employee, error)
	ByToken(ctx context.Context, token string) (Employee, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const employeeColumns = `id, name, role, token, is_active, created_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Name, &e.Role, &e.Token, &e.IsActive, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, shared.ErrNotFound
	}
	return e, err
}

func (r *repository) List(ctx context.Context) ([]Employee, error) {
	rows, err := r.db.Query(ctx, `SELECT `+employeeColumns+` FROM employees WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Employee, error) {
	return scanEmployee(r.db.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
}

func (r *repository) ByToken(ctx context.Context, token string) (Employee, error) {
	return scanEmployee(r.db.QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE token = $1 AND is_active`, token))
}
