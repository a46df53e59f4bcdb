package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Fallback selects what happens when FIFO layers exhaust before the
// requested quantity is covered.
type Fallback int

const (
	// FallbackNone fails the consumption. Revenue-affecting operations
	// (sale, purchase request) must have full cost data.
	FallbackNone Fallback = iota
	// FallbackLatestCost prices the uncovered remainder at the newest
	// layer's unit cost (zero when no layer exists). Write-offs such as
	// void and warranty must always be postable.
	FallbackLatestCost
)

// ConsumeRequest describes one FIFO consumption.
type ConsumeRequest struct {
	ConsumingInvoiceID int64
	ItemID             int64
	// LocationID scopes the layer scan; zero scans every location.
	LocationID int64
	Qty        int64
	Fallback   Fallback
	// WidenLocation retries the remainder against layers at any location
	// before applying the fallback. Used by warranty write-offs.
	WidenLocation bool
}

// Consumption is the outcome of a FIFO consumption: the cost drawn and
// the trace entries written for later reversal.
type Consumption struct {
	Qty       int64
	TotalCost decimal.Decimal
	Entries   []TraceEntry
}

// EffectiveUnitCost returns total cost divided by quantity.
func (c Consumption) EffectiveUnitCost() decimal.Decimal {
	if c.Qty == 0 {
		return decimal.Zero
	}
	return c.TotalCost.DivRound(decimal.NewFromInt(c.Qty), 4)
}

// IncrementStock raises the on-hand counter, creating the row when the
// operation introduces a new item/location pair.
func IncrementStock(ctx context.Context, st Store, itemID, locationID, qty int64) (int64, error) {
	current, err := st.StockForUpdate(ctx, itemID, locationID)
	if err != nil {
		return 0, err
	}
	next := current + qty
	if err := st.SetStock(ctx, itemID, locationID, next); err != nil {
		return 0, err
	}
	return next, nil
}

// DecrementStock lowers the on-hand counter, failing when the location
// does not hold enough stock. The row stays locked until commit, so the
// check-then-write is race-free.
func DecrementStock(ctx context.Context, st Store, itemID, locationID, qty int64) (int64, error) {
	current, err := st.StockForUpdate(ctx, itemID, locationID)
	if err != nil {
		return 0, err
	}
	if current < qty {
		return 0, &StockShortage{ItemID: itemID, LocationID: locationID, Have: current, Want: qty}
	}
	next := current - qty
	if err := st.SetStock(ctx, itemID, locationID, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Consume draws the requested quantity from cost layers oldest-first,
// decrementing each layer and writing one CONSUME trace entry per layer
// drawn from.
func Consume(ctx context.Context, st Store, req ConsumeRequest) (Consumption, error) {
	if req.Qty <= 0 {
		return Consumption{}, fmt.Errorf("ledger: consume quantity must be positive, got %d", req.Qty)
	}

	result := Consumption{Qty: req.Qty, TotalCost: decimal.Zero}
	need := req.Qty

	layers, err := st.LayersForUpdate(ctx, req.ItemID, req.LocationID)
	if err != nil {
		return Consumption{}, err
	}
	need, err = drawLayers(ctx, st, &result, req, layers, need, 0)
	if err != nil {
		return Consumption{}, err
	}

	if need > 0 && req.WidenLocation && req.LocationID != 0 {
		wide, err := st.LayersForUpdate(ctx, req.ItemID, 0)
		if err != nil {
			return Consumption{}, err
		}
		need, err = drawLayers(ctx, st, &result, req, wide, need, req.LocationID)
		if err != nil {
			return Consumption{}, err
		}
	}

	if need > 0 {
		if req.Fallback != FallbackLatestCost {
			return Consumption{}, &PricedShortage{ItemID: req.ItemID, LocationID: req.LocationID, Unmet: need}
		}
		if err := synthesizeRemainder(ctx, st, &result, req, need); err != nil {
			return Consumption{}, err
		}
	}

	return result, nil
}

func drawLayers(ctx context.Context, st Store, result *Consumption, req ConsumeRequest, layers []CostLayer, need int64, skipLocation int64) (int64, error) {
	for _, layer := range layers {
		if need == 0 {
			break
		}
		if skipLocation != 0 && layer.Key.LocationID == skipLocation {
			continue
		}
		take := layer.Remaining
		if take > need {
			take = need
		}
		if take == 0 {
			continue
		}
		if err := st.AdjustLayer(ctx, layer.Key, -take, 0); err != nil {
			return need, err
		}
		key := layer.Key
		entry := TraceEntry{
			ConsumingInvoiceID: req.ConsumingInvoiceID,
			ItemID:             req.ItemID,
			Layer:              &key,
			Qty:                take,
			UnitCost:           layer.UnitCost,
			Subtotal:           layer.UnitCost.Mul(decimal.NewFromInt(take)),
			Type:               EntryConsume,
		}
		id, err := st.InsertTrace(ctx, entry)
		if err != nil {
			return need, err
		}
		entry.ID = id
		result.Entries = append(result.Entries, entry)
		result.TotalCost = result.TotalCost.Add(entry.Subtotal)
		need -= take
	}
	return need, nil
}

// synthesizeRemainder prices the uncovered remainder at the newest
// layer's cost without touching layer quantities. The trace entry is
// marked synthetic so reversal does not over-restore.
func synthesizeRemainder(ctx context.Context, st Store, result *Consumption, req ConsumeRequest, need int64) error {
	cost := decimal.Zero
	var layerRef *LayerKey
	latest, ok, err := st.LatestLayer(ctx, req.ItemID)
	if err != nil {
		return err
	}
	if ok {
		cost = latest.UnitCost
		key := latest.Key
		layerRef = &key
	}
	entry := TraceEntry{
		ConsumingInvoiceID: req.ConsumingInvoiceID,
		ItemID:             req.ItemID,
		Layer:              layerRef,
		Qty:                need,
		UnitCost:           cost,
		Subtotal:           cost.Mul(decimal.NewFromInt(need)),
		Type:               EntryConsume,
		Synthetic:          true,
	}
	id, err := st.InsertTrace(ctx, entry)
	if err != nil {
		return err
	}
	entry.ID = id
	result.Entries = append(result.Entries, entry)
	result.TotalCost = result.TotalCost.Add(entry.Subtotal)
	return nil
}

// Restore undoes every trace entry of the given invoice: quantity drawn
// by CONSUME entries flows back into the source layers, quantity put back
// by RESTORE entries is taken out again, and the entries are deleted.
// A second call finds no entries and is a no-op, so reversal is
// idempotent. Returns the number of entries reversed.
func Restore(ctx context.Context, st Store, invoiceID int64) (int, error) {
	entries, err := st.TracesByConsumer(ctx, invoiceID)
	if err != nil {
		return 0, err
	}
	// Reverse creation order: later entries may depend on earlier layer
	// state, undoing back-to-front restores it exactly.
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		switch {
		case entry.Synthetic:
			// Cost attribution only, no quantity moved.
		case entry.Type == EntryConsume:
			if entry.ReturnedQty > 0 {
				blocking := int64(0)
				if restores, err := st.RestoresByRelated(ctx, entry.ID); err == nil && len(restores) > 0 {
					blocking = restores[0].ConsumingInvoiceID
				}
				return 0, &ConsumedConflict{Layer: derefLayer(entry.Layer), Qty: entry.ReturnedQty, BlockingInvoiceID: blocking}
			}
			if err := restoreIntoLayer(ctx, st, entry); err != nil {
				return 0, err
			}
		case entry.Type == EntryRestore:
			if err := unrestoreFromLayer(ctx, st, entry); err != nil {
				return 0, err
			}
		}
		if err := st.DeleteTrace(ctx, entry.ID); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

func derefLayer(key *LayerKey) LayerKey {
	if key == nil {
		return LayerKey{}
	}
	return *key
}

func restoreIntoLayer(ctx context.Context, st Store, entry TraceEntry) error {
	if entry.Layer == nil {
		return fmt.Errorf("ledger: consume trace %d has no layer reference", entry.ID)
	}
	_, ok, err := st.LayerForUpdate(ctx, *entry.Layer)
	if err != nil {
		return err
	}
	if !ok {
		// Layer was hard-deleted, which should not normally happen.
		return st.InsertLayer(ctx, CostLayer{
			Key:       *entry.Layer,
			Remaining: entry.Qty,
			Original:  entry.Qty,
			UnitCost:  entry.UnitCost,
			CreatedAt: time.Now().UTC(),
		})
	}
	return st.AdjustLayer(ctx, *entry.Layer, entry.Qty, 0)
}

func unrestoreFromLayer(ctx context.Context, st Store, entry TraceEntry) error {
	if entry.Layer == nil {
		return fmt.Errorf("ledger: restore trace %d has no layer reference", entry.ID)
	}
	layer, ok, err := st.LayerForUpdate(ctx, *entry.Layer)
	if err != nil {
		return err
	}
	if !ok || layer.Remaining < entry.Qty {
		have := int64(0)
		if ok {
			have = layer.Remaining
		}
		_, _, blocking, _ := st.LayerUsage(ctx, *entry.Layer)
		return &ConsumedConflict{Layer: *entry.Layer, Qty: entry.Qty - have, BlockingInvoiceID: blocking}
	}
	if err := st.AdjustLayer(ctx, *entry.Layer, -entry.Qty, 0); err != nil {
		return err
	}
	if entry.RelatedTraceID != 0 {
		if err := st.AddTraceReturnedQty(ctx, entry.RelatedTraceID, -entry.Qty); err != nil {
			return err
		}
	}
	return nil
}

// ReturnToLayers puts returned quantity back into the exact layers the
// original invoice consumed for the item, unwinding trace entries in
// reverse consumption order. Each restoration is recorded as a RESTORE
// entry owned by the return invoice so the return itself stays
// reversible.
func ReturnToLayers(ctx context.Context, st Store, originalInvoiceID, returnInvoiceID, itemID, qty int64) (Consumption, error) {
	if qty <= 0 {
		return Consumption{}, fmt.Errorf("ledger: return quantity must be positive, got %d", qty)
	}
	entries, err := st.TracesByConsumerItem(ctx, originalInvoiceID, itemID)
	if err != nil {
		return Consumption{}, err
	}
	result := Consumption{Qty: qty, TotalCost: decimal.Zero}
	need := qty
	for i := len(entries) - 1; i >= 0 && need > 0; i-- {
		entry := entries[i]
		if entry.Type != EntryConsume || entry.Synthetic || entry.Layer == nil {
			continue
		}
		avail := entry.Qty - entry.ReturnedQty
		if avail <= 0 {
			continue
		}
		take := avail
		if take > need {
			take = need
		}
		if err := st.AdjustLayer(ctx, *entry.Layer, take, 0); err != nil {
			return Consumption{}, err
		}
		if err := st.AddTraceReturnedQty(ctx, entry.ID, take); err != nil {
			return Consumption{}, err
		}
		key := *entry.Layer
		restore := TraceEntry{
			ConsumingInvoiceID: returnInvoiceID,
			ItemID:             itemID,
			Layer:              &key,
			Qty:                take,
			UnitCost:           entry.UnitCost,
			Subtotal:           entry.UnitCost.Mul(decimal.NewFromInt(take)),
			Type:               EntryRestore,
			RelatedTraceID:     entry.ID,
		}
		id, err := st.InsertTrace(ctx, restore)
		if err != nil {
			return Consumption{}, err
		}
		restore.ID = id
		result.Entries = append(result.Entries, restore)
		result.TotalCost = result.TotalCost.Add(restore.Subtotal)
		need -= take
	}
	if need > 0 {
		return Consumption{}, &PricedShortage{ItemID: itemID, Unmet: need}
	}
	return result, nil
}

// CreateLayer records inbound priced inventory as a new cost layer.
func CreateLayer(ctx context.Context, st Store, key LayerKey, qty int64, unitCost decimal.Decimal, at time.Time) error {
	if qty <= 0 {
		return fmt.Errorf("ledger: layer quantity must be positive, got %d", qty)
	}
	if unitCost.IsNegative() {
		return fmt.Errorf("ledger: layer unit cost must not be negative")
	}
	existing, ok, err := st.LayerForUpdate(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		if !existing.UnitCost.Equal(unitCost) {
			return fmt.Errorf("ledger: %s already exists at cost %s", key, existing.UnitCost)
		}
		return st.AdjustLayer(ctx, key, qty, qty)
	}
	return st.InsertLayer(ctx, CostLayer{Key: key, Remaining: qty, Original: qty, UnitCost: unitCost, CreatedAt: at})
}

// RemoveLayers deletes every layer created by an invoice, refusing when
// any of them has been drawn from by another invoice.
func RemoveLayers(ctx context.Context, st Store, sourceInvoiceID int64) error {
	layers, err := st.LayersBySource(ctx, sourceInvoiceID)
	if err != nil {
		return err
	}
	for _, layer := range layers {
		refs, used, blocking, err := st.LayerUsage(ctx, layer.Key)
		if err != nil {
			return err
		}
		if refs > 0 {
			return &ConsumedConflict{Layer: layer.Key, Qty: used, BlockingInvoiceID: blocking}
		}
		if err := st.DeleteLayer(ctx, layer.Key); err != nil {
			return err
		}
	}
	return nil
}

// SplitLayer moves quantity from a layer into its counterpart at the
// destination location for the same source invoice, preserving FIFO
// chronology and supplier attribution.
func SplitLayer(ctx context.Context, st Store, key LayerKey, qty, destLocationID int64) error {
	if qty <= 0 {
		return fmt.Errorf("ledger: split quantity must be positive, got %d", qty)
	}
	src, ok, err := st.LayerForUpdate(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, key)
	}
	if src.Remaining < qty {
		return &PricedShortage{ItemID: key.ItemID, LocationID: key.LocationID, Unmet: qty - src.Remaining}
	}
	if err := st.AdjustLayer(ctx, key, -qty, -qty); err != nil {
		return err
	}
	destKey := LayerKey{SourceInvoiceID: key.SourceInvoiceID, ItemID: key.ItemID, LocationID: destLocationID}
	_, ok, err = st.LayerForUpdate(ctx, destKey)
	if err != nil {
		return err
	}
	if ok {
		return st.AdjustLayer(ctx, destKey, qty, qty)
	}
	return st.InsertLayer(ctx, CostLayer{
		Key:       destKey,
		Remaining: qty,
		Original:  qty,
		UnitCost:  src.UnitCost,
		CreatedAt: src.CreatedAt,
	})
}

// UnsplitLayer reverses SplitLayer, failing when the destination layer no
// longer holds the moved quantity.
func UnsplitLayer(ctx context.Context, st Store, key LayerKey, qty, destLocationID int64) error {
	destKey := LayerKey{SourceInvoiceID: key.SourceInvoiceID, ItemID: key.ItemID, LocationID: destLocationID}
	dest, ok, err := st.LayerForUpdate(ctx, destKey)
	if err != nil {
		return err
	}
	if !ok || dest.Remaining < qty {
		have := int64(0)
		if ok {
			have = dest.Remaining
		}
		_, _, blocking, _ := st.LayerUsage(ctx, destKey)
		return &ConsumedConflict{Layer: destKey, Qty: qty - have, BlockingInvoiceID: blocking}
	}
	if err := st.AdjustLayer(ctx, destKey, -qty, -qty); err != nil {
		return err
	}
	if dest.Remaining == qty && dest.Original == qty {
		refs, _, _, err := st.LayerUsage(ctx, destKey)
		if err != nil {
			return err
		}
		if refs == 0 {
			if err := st.DeleteLayer(ctx, destKey); err != nil {
				return err
			}
		}
	}
	_, ok, err = st.LayerForUpdate(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		return st.AdjustLayer(ctx, key, qty, qty)
	}
	return st.InsertLayer(ctx, CostLayer{
		Key:       key,
		Remaining: qty,
		Original:  qty,
		UnitCost:  dest.UnitCost,
		CreatedAt: dest.CreatedAt,
	})
}

// LatestCost returns the newest layer cost for an item, used by purchase
// requests which only reference prices.
func LatestCost(ctx context.Context, st Store, itemID int64) (decimal.Decimal, bool, error) {
	latest, ok, err := st.LatestLayer(ctx, itemID)
	if err != nil || !ok {
		return decimal.Zero, false, err
	}
	return latest.UnitCost, true, nil
}
