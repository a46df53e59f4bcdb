// Package ledger implements the inventory ledger engine: on-hand stock
// counters per item and location, FIFO cost layers created by inbound
// operations, and the consumption trace that records exactly which layers
// each outbound operation drew from so any operation can be reversed.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LayerKey identifies a cost layer by its originating invoice, item and
// location. Layers are consumed oldest-first, ordered by source invoice id.
type LayerKey struct {
	SourceInvoiceID int64
	ItemID          int64
	LocationID      int64
}

func (k LayerKey) String() string {
	return fmt.Sprintf("layer(inv=%d item=%d loc=%d)", k.SourceInvoiceID, k.ItemID, k.LocationID)
}

// CostLayer is a slice of inbound inventory tagged with its unit cost.
// Remaining only decreases through consumption and only increases through
// reversal; it never exceeds Original. A drained layer persists at zero
// while any trace entry still references it.
type CostLayer struct {
	Key       LayerKey
	Remaining int64
	Original  int64
	UnitCost  decimal.Decimal
	CreatedAt time.Time
}

// EntryType distinguishes consumption from restoration trace entries.
type EntryType string

const (
	// EntryConsume records quantity drawn from a layer.
	EntryConsume EntryType = "CONSUME"
	// EntryRestore records quantity put back into a layer by a return.
	EntryRestore EntryType = "RESTORE"
)

// TraceEntry links a consuming invoice to one source layer it drew from.
// Synthetic entries record the latest-cost fallback used by write-off
// operations; they carry cost attribution only and never move layer
// quantity, so reversal skips them.
type TraceEntry struct {
	ID                 int64
	ConsumingInvoiceID int64
	ItemID             int64
	Layer              *LayerKey
	Qty                int64
	UnitCost           decimal.Decimal
	Subtotal           decimal.Decimal
	Type               EntryType
	RelatedTraceID     int64
	ReturnedQty        int64
	Synthetic          bool
	CreatedAt          time.Time
}

// Sentinel errors of the ledger engine.
var (
	ErrInsufficientStock           = errors.New("insufficient stock")
	ErrInsufficientPricedInventory = errors.New("insufficient priced inventory")
	ErrConsumedReference           = errors.New("cost layer consumed by downstream operation")
	ErrLayerNotFound               = errors.New("cost layer not found")
)

// StockShortage reports an outbound quantity exceeding on-hand stock.
type StockShortage struct {
	ItemID     int64
	LocationID int64
	Have       int64
	Want       int64
}

func (e *StockShortage) Error() string {
	return fmt.Sprintf("insufficient stock for item %d at location %d: have %d, want %d", e.ItemID, e.LocationID, e.Have, e.Want)
}

func (e *StockShortage) Unwrap() error { return ErrInsufficientStock }

// PricedShortage reports FIFO layers exhausting before the requested
// quantity was covered.
type PricedShortage struct {
	ItemID     int64
	LocationID int64
	Unmet      int64
}

func (e *PricedShortage) Error() string {
	return fmt.Sprintf("priced inventory exhausted for item %d at location %d: %d units uncovered", e.ItemID, e.LocationID, e.Unmet)
}

func (e *PricedShortage) Unwrap() error { return ErrInsufficientPricedInventory }

// ConsumedConflict reports an attempt to remove or shrink a layer whose
// quantity has already been drawn by a downstream invoice.
type ConsumedConflict struct {
	Layer             LayerKey
	Qty               int64
	BlockingInvoiceID int64
}

func (e *ConsumedConflict) Error() string {
	if e.BlockingInvoiceID != 0 {
		return fmt.Sprintf("%s: %d units already consumed by invoice %d", e.Layer, e.Qty, e.BlockingInvoiceID)
	}
	return fmt.Sprintf("%s: %d units already consumed downstream", e.Layer, e.Qty)
}

func (e *ConsumedConflict) Unwrap() error { return ErrConsumedReference }
