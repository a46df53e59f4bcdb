package rental

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Store is the transaction-scoped persistence port for rental state.
// Implementations lock rows for the duration of the wrapping transaction.
type Store interface {
	InsertRented(ctx context.Context, item RentedItem) (int64, error)
	RentedForUpdate(ctx context.Context, id int64) (RentedItem, bool, error)
	RentedByInvoice(ctx context.Context, invoiceID int64) ([]RentedItem, error)
	SetRentedStatus(ctx context.Context, id int64, status Status) error
	DeleteRentedByInvoice(ctx context.Context, invoiceID int64) error
	CounterForUpdate(ctx context.Context, itemID int64) (Counter, error)
	SetCounter(ctx context.Context, c Counter) error
}

// TxStore implements Store over one pgx transaction.
type TxStore struct {
	tx pgx.Tx
}

func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

var _ Store = (*TxStore)(nil)

func (s *TxStore) InsertRented(ctx context.Context, item RentedItem) (int64, error) {
	var id int64
	now := time.Now()
	err := s.tx.QueryRow(ctx,
		`INSERT INTO rented_items (invoice_id, item_id, qty, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
		item.InvoiceID, item.ItemID, item.Qty, item.Status, now).Scan(&id)
	return id, err
}

func (s *TxStore) RentedForUpdate(ctx context.Context, id int64) (RentedItem, bool, error) {
	var it RentedItem
	err := s.tx.QueryRow(ctx,
		`SELECT id, invoice_id, item_id, qty, status, created_at, updated_at
		 FROM rented_items WHERE id = $1 FOR UPDATE`, id).
		Scan(&it.ID, &it.InvoiceID, &it.ItemID, &it.Qty, &it.Status, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RentedItem{}, false, nil
	}
	return it, err == nil, err
}

func (s *TxStore) RentedByInvoice(ctx context.Context, invoiceID int64) ([]RentedItem, error) {
	rows, err := s.tx.Query(ctx,
		`SELECT id, invoice_id, item_id, qty, status, created_at, updated_at
		 FROM rented_items WHERE invoice_id = $1 ORDER BY id FOR UPDATE`, invoiceID)
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

func (s *TxStore) SetRentedStatus(ctx context.Context, id int64, status Status) error {
	tag, err := s.tx.Exec(ctx,
		`UPDATE rented_items SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *TxStore) DeleteRentedByInvoice(ctx context.Context, invoiceID int64) error {
	_, err := s.tx.Exec(ctx, `DELETE FROM rented_items WHERE invoice_id = $1`, invoiceID)
	return err
}

func (s *TxStore) CounterForUpdate(ctx context.Context, itemID int64) (Counter, error) {
	c := Counter{ItemID: itemID}
	err := s.tx.QueryRow(ctx,
		`SELECT qty, reserved FROM rental_stock WHERE item_id = $1 FOR UPDATE`, itemID).
		Scan(&c.Qty, &c.Reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil
	}
	return c, err
}

func (s *TxStore) SetCounter(ctx context.Context, c Counter) error {
	_, err := s.tx.Exec(ctx,
		`INSERT INTO rental_stock (item_id, qty, reserved) VALUES ($1, $2, $3)
		 ON CONFLICT (item_id) DO UPDATE SET qty = EXCLUDED.qty, reserved = EXCLUDED.reserved`,
		c.ItemID, c.Qty, c.Reserved)
	return err
}
