package ledger

import "context"

// Store exposes the transactional operations the engine needs. An
// implementation is scoped to one database transaction; every row it
// reads for mutation is locked until commit.
type Store interface {
	// StockForUpdate returns the on-hand quantity for item/location,
	// locking the row. Missing rows read as zero.
	StockForUpdate(ctx context.Context, itemID, locationID int64) (int64, error)
	// SetStock upserts the on-hand quantity for item/location.
	SetStock(ctx context.Context, itemID, locationID, qty int64) error

	// LayersForUpdate returns layers with remaining quantity for the item,
	// oldest first. locationID zero widens the scan to every location.
	LayersForUpdate(ctx context.Context, itemID, locationID int64) ([]CostLayer, error)
	// LayerForUpdate fetches one layer by key, locking it.
	LayerForUpdate(ctx context.Context, key LayerKey) (CostLayer, bool, error)
	// LayersBySource returns all layers created by an invoice.
	LayersBySource(ctx context.Context, sourceInvoiceID int64) ([]CostLayer, error)
	// LatestLayer returns the newest layer for the item regardless of
	// remaining quantity, used by the write-off price fallback.
	LatestLayer(ctx context.Context, itemID int64) (CostLayer, bool, error)
	InsertLayer(ctx context.Context, layer CostLayer) error
	// AdjustLayer applies deltas to remaining and original quantities.
	AdjustLayer(ctx context.Context, key LayerKey, remainingDelta, originalDelta int64) error
	DeleteLayer(ctx context.Context, key LayerKey) error

	InsertTrace(ctx context.Context, entry TraceEntry) (int64, error)
	// TracesByConsumer returns every trace entry belonging to an invoice,
	// in creation order.
	TracesByConsumer(ctx context.Context, invoiceID int64) ([]TraceEntry, error)
	// TracesByConsumerItem narrows TracesByConsumer to one item.
	TracesByConsumerItem(ctx context.Context, invoiceID, itemID int64) ([]TraceEntry, error)
	// RestoresByRelated returns RESTORE entries pointing at a consume entry.
	RestoresByRelated(ctx context.Context, traceID int64) ([]TraceEntry, error)
	DeleteTrace(ctx context.Context, id int64) error
	// AddTraceReturnedQty tracks the running returned total on a consume
	// entry, avoiding re-aggregation under concurrent partial returns.
	AddTraceReturnedQty(ctx context.Context, id int64, delta int64) error
	// LayerUsage reports how many trace entries of other invoices still
	// reference the layer, the net quantity they hold, and one blocking
	// invoice id. A layer may only be deleted while refs is zero.
	LayerUsage(ctx context.Context, key LayerKey) (refs int64, qty int64, blockingInvoiceID int64, err error)
}
