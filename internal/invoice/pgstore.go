package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stockyard-wms/stockyard/internal/ledger"
	"github.com/stockyard-wms/stockyard/internal/rental"
)

// TxRepo implements TxRepository over one pgx transaction.
type TxRepo struct {
	tx       pgx.Tx
	ledgerSt *ledger.TxStore
	rentalSt *rental.TxStore
}

func NewTxRepo(tx pgx.Tx) *TxRepo {
	return &TxRepo{
		tx:       tx,
		ledgerSt: ledger.NewTxStore(tx),
		rentalSt: rental.NewTxStore(tx),
	}
}

var _ TxRepository = (*TxRepo)(nil)

func (r *TxRepo) Ledger() ledger.Store { return r.ledgerSt }
func (r *TxRepo) Rental() rental.Store { return r.rentalSt }

const invoiceColumns = `id, ref, kind, status, supplier_id, machine_id, mechanism_id,
original_invoice_id, total, paid, residual, description, created_by, created_at, updated_at`

func (r *TxRepo) InsertInvoice(ctx context.Context, inv *Invoice) error {
	return r.tx.QueryRow(ctx,
		`INSERT INTO invoices (ref, kind, status, supplier_id, machine_id, mechanism_id,
		 original_invoice_id, total, paid, residual, description, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		inv.Ref, inv.Kind, inv.Status, inv.SupplierID, inv.MachineID, inv.MechanismID,
		inv.OriginalInvoiceID, inv.Total, inv.Paid, inv.Residual, inv.Description,
		inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt).Scan(&inv.ID)
}

func (r *TxRepo) InvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	err := r.tx.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id).
		Scan(&inv.ID, &inv.Ref, &inv.Kind, &inv.Status, &inv.SupplierID, &inv.MachineID,
			&inv.MechanismID, &inv.OriginalInvoiceID, &inv.Total, &inv.Paid, &inv.Residual,
			&inv.Description, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = r.linesByInvoice(ctx, id)
	return inv, err
}

func (r *TxRepo) UpdateInvoiceHeader(ctx context.Context, inv Invoice) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE invoices SET status = $1, supplier_id = $2, machine_id = $3, mechanism_id = $4,
		 original_invoice_id = $5, total = $6, paid = $7, residual = $8, description = $9, updated_at = $10
		 WHERE id = $11`,
		inv.Status, inv.SupplierID, inv.MachineID, inv.MechanismID, inv.OriginalInvoiceID,
		inv.Total, inv.Paid, inv.Residual, inv.Description, inv.UpdatedAt, inv.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TxRepo) DeleteInvoice(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const lineColumns = `id, invoice_id, item_id, location_id, dest_location_id, qty, returned_qty,
unit_price, total, supplier_note, description`

func scanLine(row pgx.Row) (Line, error) {
	var line Line
	err := row.Scan(&line.ID, &line.InvoiceID, &line.ItemID, &line.LocationID,
		&line.DestLocationID, &line.Qty, &line.ReturnedQty, &line.UnitPrice,
		&line.Total, &line.SupplierNote, &line.Description)
	return line, err
}

func (r *TxRepo) linesByInvoice(ctx context.Context, invoiceID int64) ([]Line, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT `+lineColumns+` FROM invoice_lines WHERE invoice_id = $1 ORDER BY id FOR UPDATE`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (r *TxRepo) InsertLine(ctx context.Context, line *Line) error {
	return r.tx.QueryRow(ctx,
		`INSERT INTO invoice_lines (invoice_id, item_id, location_id, dest_location_id, qty,
		 returned_qty, unit_price, total, supplier_note, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		line.InvoiceID, line.ItemID, line.LocationID, line.DestLocationID, line.Qty,
		line.ReturnedQty, line.UnitPrice, line.Total, line.SupplierNote, line.Description).
		Scan(&line.ID)
}

func (r *TxRepo) UpdateLine(ctx context.Context, line Line) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE invoice_lines SET qty = $1, returned_qty = $2, unit_price = $3, total = $4,
		 supplier_note = $5, description = $6 WHERE id = $7`,
		line.Qty, line.ReturnedQty, line.UnitPrice, line.Total,
		line.SupplierNote, line.Description, line.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TxRepo) DeleteLine(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE id = $1`, id)
	return err
}

func (r *TxRepo) DeleteLines(ctx context.Context, invoiceID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, invoiceID)
	return err
}

func (r *TxRepo) AddLineReturnedQty(ctx context.Context, lineID, delta int64) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE invoice_lines SET returned_qty = returned_qty + $1 WHERE id = $2`, delta, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TxRepo) LineForUpdate(ctx context.Context, invoiceID, itemID, locationID int64) (Line, bool, error) {
	line, err := scanLine(r.tx.QueryRow(ctx,
		`SELECT `+lineColumns+` FROM invoice_lines
		 WHERE invoice_id = $1 AND item_id = $2 AND location_id = $3 FOR UPDATE`,
		invoiceID, itemID, locationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, false, nil
	}
	return line, err == nil, err
}

func (r *TxRepo) ItemExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *TxRepo) LocationExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM locations WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *TxRepo) InsertWarrantyReturn(ctx context.Context, wr *WarrantyReturn) error {
	wr.CreatedAt = time.Now().UTC()
	return r.tx.QueryRow(ctx,
		`INSERT INTO warranty_returns (invoice_id, item_id, location_id, qty, actor_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		wr.InvoiceID, wr.ItemID, wr.LocationID, wr.Qty, wr.ActorID, wr.CreatedAt).Scan(&wr.ID)
}

func (r *TxRepo) WarrantyReturnedQty(ctx context.Context, invoiceID, itemID, locationID int64) (int64, error) {
	var qty int64
	err := r.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(qty), 0) FROM warranty_returns
		 WHERE invoice_id = $1 AND item_id = $2 AND location_id = $3`,
		invoiceID, itemID, locationID).Scan(&qty)
	return qty, err
}

func (r *TxRepo) DeleteWarrantyReturns(ctx context.Context, invoiceID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM warranty_returns WHERE invoice_id = $1`, invoiceID)
	return err
}

func (r *TxRepo) InsertPurchaseRequest(ctx context.Context, pr *PurchaseRequest) error {
	now := time.Now().UTC()
	pr.CreatedAt = now
	pr.UpdatedAt = now
	return r.tx.QueryRow(ctx,
		`INSERT INTO purchase_requests (invoice_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $3) RETURNING id`,
		pr.InvoiceID, pr.Status, now).Scan(&pr.ID)
}

func (r *TxRepo) PurchaseRequestForUpdate(ctx context.Context, invoiceID int64) (PurchaseRequest, bool, error) {
	var pr PurchaseRequest
	err := r.tx.QueryRow(ctx,
		`SELECT id, invoice_id, status, created_at, updated_at
		 FROM purchase_requests WHERE invoice_id = $1 FOR UPDATE`, invoiceID).
		Scan(&pr.ID, &pr.InvoiceID, &pr.Status, &pr.CreatedAt, &pr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRequest{}, false, nil
	}
	return pr, err == nil, err
}

func (r *TxRepo) UpdatePurchaseRequestStatus(ctx context.Context, id int64, status PurchaseRequestStatus) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchase_requests SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TxRepo) DeletePurchaseRequest(ctx context.Context, invoiceID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM purchase_requests WHERE invoice_id = $1`, invoiceID)
	return err
}

func (r *TxRepo) InsertTransferEdit(ctx context.Context, edit *TransferEdit) error {
	var snapshot []byte
	if edit.SrcLineSnapshot != nil {
		var err error
		snapshot, err = json.Marshal(edit.SrcLineSnapshot)
		if err != nil {
			return err
		}
	}
	edit.CreatedAt = time.Now().UTC()
	return r.tx.QueryRow(ctx,
		`INSERT INTO transfer_edits (transfer_invoice_id, purchase_invoice_id, item_id,
		 source_location_id, dest_location_id, qty, src_line_deleted, src_line_snapshot, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		edit.TransferInvoiceID, edit.PurchaseInvoiceID, edit.ItemID,
		edit.SourceLocationID, edit.DestLocationID, edit.Qty,
		edit.SrcLineDeleted, snapshot, edit.CreatedAt).Scan(&edit.ID)
}

func (r *TxRepo) TransferEditsByInvoice(ctx context.Context, transferInvoiceID int64) ([]TransferEdit, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT id, transfer_invoice_id, purchase_invoice_id, item_id, source_location_id,
		 dest_location_id, qty, src_line_deleted, src_line_snapshot, created_at
		 FROM transfer_edits WHERE transfer_invoice_id = $1 ORDER BY id`, transferInvoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransferEdit
	for rows.Next() {
		var edit TransferEdit
		var snapshot []byte
		if err := rows.Scan(&edit.ID, &edit.TransferInvoiceID, &edit.PurchaseInvoiceID,
			&edit.ItemID, &edit.SourceLocationID, &edit.DestLocationID, &edit.Qty,
			&edit.SrcLineDeleted, &snapshot, &edit.CreatedAt); err != nil {
			return nil, err
		}
		if len(snapshot) > 0 {
			edit.SrcLineSnapshot = &Line{}
			if err := json.Unmarshal(snapshot, edit.SrcLineSnapshot); err != nil {
				return nil, err
			}
		}
		out = append(out, edit)
	}
	return out, rows.Err()
}

func (r *TxRepo) DeleteTransferEdits(ctx context.Context, transferInvoiceID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM transfer_edits WHERE transfer_invoice_id = $1`, transferInvoiceID)
	return err
}
