package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
)

// TxStore implements Store on top of one pgx transaction. Every caller
// shares the transaction with the invoice rows it is mutating, so stock,
// layers, traces and invoice state commit or roll back together.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps a transaction.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

var _ Store = (*TxStore)(nil)

func (s *TxStore) StockForUpdate(ctx context.Context, itemID, locationID int64) (int64, error) {
	var qty int64
	err := s.tx.QueryRow(ctx, `SELECT qty FROM stock_levels WHERE item_id=$1 AND location_id=$2 FOR UPDATE`, itemID, locationID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

func (s *TxStore) SetStock(ctx context.Context, itemID, locationID, qty int64) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_levels (item_id, location_id, qty, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (item_id, location_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`, itemID, locationID, qty)
	return err
}

const layerColumns = `source_invoice_id, item_id, location_id, remaining_qty, original_qty, unit_cost, created_at`

func scanLayer(row pgx.Row) (CostLayer, error) {
	var layer CostLayer
	err := row.Scan(&layer.Key.SourceInvoiceID, &layer.Key.ItemID, &layer.Key.LocationID,
		&layer.Remaining, &layer.Original, &layer.UnitCost, &layer.CreatedAt)
	return layer, err
}

func (s *TxStore) LayersForUpdate(ctx context.Context, itemID, locationID int64) ([]CostLayer, error) {
	query := `SELECT ` + layerColumns + ` FROM cost_layers
WHERE item_id=$1 AND remaining_qty > 0`
	args := []any{itemID}
	if locationID != 0 {
		query += ` AND location_id=$2`
		args = append(args, locationID)
	}
	query += ` ORDER BY source_invoice_id ASC FOR UPDATE`
	rows, err := s.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var layers []CostLayer
	for rows.Next() {
		layer, err := scanLayer(rows)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	return layers, rows.Err()
}

func (s *TxStore) LayerForUpdate(ctx context.Context, key LayerKey) (CostLayer, bool, error) {
	layer, err := scanLayer(s.tx.QueryRow(ctx, `SELECT `+layerColumns+` FROM cost_layers
WHERE source_invoice_id=$1 AND item_id=$2 AND location_id=$3 FOR UPDATE`,
		key.SourceInvoiceID, key.ItemID, key.LocationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CostLayer{}, false, nil
		}
		return CostLayer{}, false, err
	}
	return layer, true, nil
}

func (s *TxStore) LayersBySource(ctx context.Context, sourceInvoiceID int64) ([]CostLayer, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+layerColumns+` FROM cost_layers
WHERE source_invoice_id=$1 ORDER BY item_id, location_id FOR UPDATE`, sourceInvoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var layers []CostLayer
	for rows.Next() {
		layer, err := scanLayer(rows)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	return layers, rows.Err()
}

func (s *TxStore) LatestLayer(ctx context.Context, itemID int64) (CostLayer, bool, error) {
	layer, err := scanLayer(s.tx.QueryRow(ctx, `SELECT `+layerColumns+` FROM cost_layers
WHERE item_id=$1 ORDER BY source_invoice_id DESC LIMIT 1`, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CostLayer{}, false, nil
		}
		return CostLayer{}, false, err
	}
	return layer, true, nil
}

func (s *TxStore) InsertLayer(ctx context.Context, layer CostLayer) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO cost_layers (source_invoice_id, item_id, location_id, remaining_qty, original_qty, unit_cost, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		layer.Key.SourceInvoiceID, layer.Key.ItemID, layer.Key.LocationID,
		layer.Remaining, layer.Original, layer.UnitCost, layer.CreatedAt)
	return err
}

func (s *TxStore) AdjustLayer(ctx context.Context, key LayerKey, remainingDelta, originalDelta int64) error {
	tag, err := s.tx.Exec(ctx, `UPDATE cost_layers
SET remaining_qty = remaining_qty + $4, original_qty = original_qty + $5
WHERE source_invoice_id=$1 AND item_id=$2 AND location_id=$3`,
		key.SourceInvoiceID, key.ItemID, key.LocationID, remainingDelta, originalDelta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLayerNotFound
	}
	return nil
}

func (s *TxStore) DeleteLayer(ctx context.Context, key LayerKey) error {
	_, err := s.tx.Exec(ctx, `DELETE FROM cost_layers WHERE source_invoice_id=$1 AND item_id=$2 AND location_id=$3`,
		key.SourceInvoiceID, key.ItemID, key.LocationID)
	return err
}

const traceColumns = `id, consuming_invoice_id, item_id, layer_source_invoice_id, layer_item_id, layer_location_id,
qty, unit_cost, subtotal, entry_type, related_trace_id, returned_qty, synthetic, created_at`

func scanTrace(row pgx.Row) (TraceEntry, error) {
	var entry TraceEntry
	var src, item, loc, related sql.NullInt64
	var entryType string
	err := row.Scan(&entry.ID, &entry.ConsumingInvoiceID, &entry.ItemID, &src, &item, &loc,
		&entry.Qty, &entry.UnitCost, &entry.Subtotal, &entryType, &related, &entry.ReturnedQty, &entry.Synthetic, &entry.CreatedAt)
	if err != nil {
		return TraceEntry{}, err
	}
	entry.Type = EntryType(entryType)
	if src.Valid {
		entry.Layer = &LayerKey{SourceInvoiceID: src.Int64, ItemID: item.Int64, LocationID: loc.Int64}
	}
	entry.RelatedTraceID = related.Int64
	return entry, nil
}

func (s *TxStore) InsertTrace(ctx context.Context, entry TraceEntry) (int64, error) {
	var src, item, loc, related any
	if entry.Layer != nil {
		src, item, loc = entry.Layer.SourceInvoiceID, entry.Layer.ItemID, entry.Layer.LocationID
	}
	if entry.RelatedTraceID != 0 {
		related = entry.RelatedTraceID
	}
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO consumption_traces
(consuming_invoice_id, item_id, layer_source_invoice_id, layer_item_id, layer_location_id,
 qty, unit_cost, subtotal, entry_type, related_trace_id, returned_qty, synthetic, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,0,$11,NOW()) RETURNING id`,
		entry.ConsumingInvoiceID, entry.ItemID, src, item, loc,
		entry.Qty, entry.UnitCost, entry.Subtotal, string(entry.Type), related, entry.Synthetic).Scan(&id)
	return id, err
}

func (s *TxStore) TracesByConsumer(ctx context.Context, invoiceID int64) ([]TraceEntry, error) {
	return s.queryTraces(ctx, `SELECT `+traceColumns+` FROM consumption_traces
WHERE consuming_invoice_id=$1 ORDER BY id ASC FOR UPDATE`, invoiceID)
}

func (s *TxStore) TracesByConsumerItem(ctx context.Context, invoiceID, itemID int64) ([]TraceEntry, error) {
	return s.queryTraces(ctx, `SELECT `+traceColumns+` FROM consumption_traces
WHERE consuming_invoice_id=$1 AND item_id=$2 ORDER BY id ASC FOR UPDATE`, invoiceID, itemID)
}

func (s *TxStore) RestoresByRelated(ctx context.Context, traceID int64) ([]TraceEntry, error) {
	return s.queryTraces(ctx, `SELECT `+traceColumns+` FROM consumption_traces
WHERE related_trace_id=$1 AND entry_type='RESTORE' ORDER BY id ASC`, traceID)
}

func (s *TxStore) queryTraces(ctx context.Context, query string, args ...any) ([]TraceEntry, error) {
	rows, err := s.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []TraceEntry
	for rows.Next() {
		entry, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *TxStore) DeleteTrace(ctx context.Context, id int64) error {
	_, err := s.tx.Exec(ctx, `DELETE FROM consumption_traces WHERE id=$1`, id)
	return err
}

func (s *TxStore) AddTraceReturnedQty(ctx context.Context, id int64, delta int64) error {
	_, err := s.tx.Exec(ctx, `UPDATE consumption_traces SET returned_qty = returned_qty + $2 WHERE id=$1`, id, delta)
	return err
}

func (s *TxStore) LayerUsage(ctx context.Context, key LayerKey) (int64, int64, int64, error) {
	var refs, qty, blocking int64
	err := s.tx.QueryRow(ctx, `SELECT COUNT(*),
COALESCE(SUM(CASE WHEN entry_type='CONSUME' THEN qty - returned_qty ELSE 0 END), 0),
COALESCE(MIN(consuming_invoice_id), 0)
FROM consumption_traces
WHERE layer_source_invoice_id=$1 AND layer_item_id=$2 AND layer_location_id=$3
  AND consuming_invoice_id <> $1 AND NOT synthetic`,
		key.SourceInvoiceID, key.ItemID, key.LocationID).Scan(&refs, &qty, &blocking)
	return refs, qty, blocking, err
}
