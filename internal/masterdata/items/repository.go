package items

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
	List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error)
	Get(ctx context.Context, id int64) (Item, error)
	Lookup(ctx context.Context, nameOrBarcode string) (Item, error)
	Create(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, id int64, item Item) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const itemColumns = `id, name, barcode, unit, is_active, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Barcode, &it.Unit, &it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.ErrNotFound
	}
	return it, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		n := strconv.Itoa(argCount)
		where += ` AND (name ILIKE $` + n + ` OR barcode ILIKE $` + n + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM items`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + itemColumns + ` FROM items` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
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

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Item, error) {
	return scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
}

func (r *repository) Lookup(ctx context.Context, nameOrBarcode string) (Item, error) {
	return scanItem(r.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE name = $1 OR barcode = $1`, nameOrBarcode))
}

func (r *repository) Create(ctx context.Context, item Item) (Item, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO items (name, barcode, unit, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
		item.Name, item.Barcode, item.Unit, item.IsActive, now).Scan(&item.ID)
	if err != nil {
		return Item{}, mapUnique(err)
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, nil
}

func (r *repository) Update(ctx context.Context, id int64, item Item) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE items SET name = $1, barcode = $2, unit = $3, is_active = $4, updated_at = $5 WHERE id = $6`,
		item.Name, item.Barcode, item.Unit, item.IsActive, time.Now(), id)
	if err != nil {
		return mapUnique(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "barcode":
		return "barcode " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
