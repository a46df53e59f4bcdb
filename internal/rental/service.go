package rental

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockyard-wms/stockyard/internal/ledger"
	"github.com/stockyard-wms/stockyard/internal/platform/db"
	"github.com/stockyard-wms/stockyard/internal/shared"
)

// Service drives rented item transitions outside the invoice lifecycle.
// Reserving and releasing happen inside rental invoice operations; give,
// return and borrow are standalone warehouse events.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	audit  *shared.AuditLogger
}

func NewService(pool *pgxpool.Pool, logger *slog.Logger, audit *shared.AuditLogger) *Service {
	return &Service{pool: pool, logger: logger, audit: audit}
}

// Give hands the rented item to the customer.
func (s *Service) Give(ctx context.Context, id int64) (RentedItem, error) {
	var item RentedItem
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		item, err = Give(ctx, NewTxStore(tx), id)
		return err
	})
	if err != nil {
		return RentedItem{}, err
	}
	s.recordAudit(ctx, "rental.give", item)
	return item, nil
}

// Return takes the rented item back into the rental warehouse.
func (s *Service) Return(ctx context.Context, id int64) (RentedItem, error) {
	var item RentedItem
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		item, err = Return(ctx, NewTxStore(tx), id)
		return err
	})
	if err != nil {
		return RentedItem{}, err
	}
	s.recordAudit(ctx, "rental.return", item)
	return item, nil
}

// BorrowToMain takes the rented item back straight into the main
// warehouse at the given location.
func (s *Service) BorrowToMain(ctx context.Context, id, mainLocationID int64) (RentedItem, error) {
	var item RentedItem
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		item, err = BorrowToMain(ctx, NewTxStore(tx), id)
		if err != nil {
			return err
		}
		_, err = ledger.IncrementStock(ctx, ledger.NewTxStore(tx), item.ItemID, mainLocationID, item.Qty)
		return err
	})
	if err != nil {
		return RentedItem{}, err
	}
	s.recordAudit(ctx, "rental.borrow_to_main", item)
	return item, nil
}

// ListByInvoice returns the rented items of an invoice.
func (s *Service) ListByInvoice(ctx context.Context, invoiceID int64) ([]RentedItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, invoice_id, item_id, qty, status, created_at, updated_at
		 FROM rented_items WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RentedItem
	for rows.Next() {
		var it RentedItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ItemID, &it.Qty, &it.Status, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Counters returns the rental warehouse stock positions.
func (s *Service) Counters(ctx context.Context) ([]Counter, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT item_id, qty, reserved FROM rental_stock ORDER BY item_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Counter
	for rows.Next() {
		var c Counter
		if err := rows.Scan(&c.ItemID, &c.Qty, &c.Reserved); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Service) recordAudit(ctx context.Context, action string, item RentedItem) {
	actor, _ := shared.ActorFromContext(ctx)
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "rented_item",
		EntityID: strconv.FormatInt(item.ID, 10),
		Meta:     map[string]any{"invoice_id": item.InvoiceID, "item_id": item.ItemID, "qty": item.Qty},
	})
	if err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
