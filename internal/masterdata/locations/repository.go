package locations

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error)
	Get(ctx context.Context, id int64) (Location, error)
	RentalLocation(ctx context.Context) (Location, error)
	Create(ctx context.Context, location Location) (Location, error)
	Update(ctx context.Context, id int64, location Location) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const locationColumns = `id, code, name, is_rental, is_active, created_at, updated_at`

func scanLocation(row pgx.Row) (Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.Code, &l.Name, &l.IsRental, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, shared.ErrNotFound
	}
	return l, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		n := strconv.Itoa(argCount)
		where += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM locations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + locationColumns + ` FROM locations` + where + ` ORDER BY code ASC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Location, error) {
	return scanLocation(r.db.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
}

func (r *repository) RentalLocation(ctx context.Context) (Location, error) {
	return scanLocation(r.db.QueryRow(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE is_rental AND is_active ORDER BY id LIMIT 1`))
}

func (r *repository) Create(ctx context.Context, location Location) (Location, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO locations (code, name, is_rental, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
		location.Code, location.Name, location.IsRental, location.IsActive, now).Scan(&location.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Location{}, shared.ErrDuplicate
		}
		return Location{}, err
	}
	location.CreatedAt = now
	location.UpdatedAt = now
	return location, nil
}

func (r *repository) Update(ctx context.Context, id int64, location Location) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE locations SET code = $1, name = $2, is_rental = $3, is_active = $4, updated_at = $5 WHERE id = $6`,
		location.Code, location.Name, location.IsRental, location.IsActive, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
