package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StockLevel is the read model for on-hand quantities.
type StockLevel struct {
	ItemID     int64     `json:"item_id"`
	LocationID int64     `json:"location_id"`
	Qty        int64     `json:"qty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LayerView is the read model for cost layers.
type LayerView struct {
	SourceInvoiceID int64           `json:"source_invoice_id"`
	ItemID          int64           `json:"item_id"`
	LocationID      int64           `json:"location_id"`
	Remaining       int64           `json:"remaining_qty"`
	Original        int64           `json:"original_qty"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	CreatedAt       time.Time       `json:"created_at"`
}

// StockFilter narrows stock level listings.
type StockFilter struct {
	ItemID     int64
	LocationID int64
	Limit      int
}

// Repository serves the ledger read paths outside any transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StockLevels lists on-hand quantities, optionally narrowed by item and
// location.
func (r *Repository) StockLevels(ctx context.Context, filter StockFilter) ([]StockLevel, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT item_id, location_id, qty, updated_at FROM stock_levels
WHERE ($1 = 0 OR item_id = $1) AND ($2 = 0 OR location_id = $2)
ORDER BY item_id, location_id
LIMIT $3`, filter.ItemID, filter.LocationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	levels := []StockLevel{}
	for rows.Next() {
		var level StockLevel
		if err := rows.Scan(&level.ItemID, &level.LocationID, &level.Qty, &level.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

// Layers lists cost layers for an item, oldest first.
func (r *Repository) Layers(ctx context.Context, itemID int64) ([]LayerView, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT source_invoice_id, item_id, location_id, remaining_qty, original_qty, unit_cost, created_at
FROM cost_layers WHERE item_id=$1 ORDER BY source_invoice_id ASC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	layers := []LayerView{}
	for rows.Next() {
		var layer LayerView
		if err := rows.Scan(&layer.SourceInvoiceID, &layer.ItemID, &layer.LocationID,
			&layer.Remaining, &layer.Original, &layer.UnitCost, &layer.CreatedAt); err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	return layers, rows.Err()
}

// LatestUnitCost returns the newest recorded cost for an item, if any.
func (r *Repository) LatestUnitCost(ctx context.Context, itemID int64) (decimal.Decimal, bool, error) {
	if r == nil {
		return decimal.Zero, false, errors.New("ledger repository not initialised")
	}
	var cost decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT unit_cost FROM cost_layers WHERE item_id=$1 ORDER BY source_invoice_id DESC LIMIT 1`, itemID).Scan(&cost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	return cost, true, nil
}
