package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind selects the operation handler for an invoice. The set is closed;
// every kind defines create, update and delete as one atomic transaction
// over stock, cost layers and consumption traces.
type Kind string

const (
	KindPurchase        Kind = "purchase"
	KindSale            Kind = "sale"
	KindReturn          Kind = "return"
	KindVoid            Kind = "void"
	KindWarranty        Kind = "warranty"
	KindBooking         Kind = "booking"
	KindRental          Kind = "rental"
	KindTransfer        Kind = "transfer"
	KindPurchaseRequest Kind = "purchase_request"
)

// Kinds lists every invoice kind in a stable order.
var Kinds = []Kind{
	KindPurchase, KindSale, KindReturn, KindVoid, KindWarranty,
	KindBooking, KindRental, KindTransfer, KindPurchaseRequest,
}

func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindSale, KindReturn, KindVoid, KindWarranty,
		KindBooking, KindRental, KindTransfer, KindPurchaseRequest:
		return true
	}
	return false
}

// Status is the approval workflow state. Stock effects are applied at
// creation; the workflow records who signed off. Warranty invoices gain
// the two return states driven by cumulative warranty returns.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusAccreditation     Status = "accreditation"
	StatusConfirmed         Status = "confirmed"
	StatusPartiallyReturned Status = "partially_returned"
	StatusReturned          Status = "returned"
)

// Invoice is the operation record: what was transacted, independent of
// the stock effects it caused.
type Invoice struct {
	ID     int64     `json:"id"`
	Ref    uuid.UUID `json:"ref"`
	Kind   Kind      `json:"kind"`
	Status Status    `json:"status"`

	// Optional directory attributions.
	SupplierID  *int64 `json:"supplier_id,omitempty"`
	MachineID   *int64 `json:"machine_id,omitempty"`
	MechanismID *int64 `json:"mechanism_id,omitempty"`

	// OriginalInvoiceID links a return to the sale it reverses.
	OriginalInvoiceID *int64 `json:"original_invoice_id,omitempty"`

	Total    decimal.Decimal `json:"total"`
	Paid     decimal.Decimal `json:"paid"`
	Residual decimal.Decimal `json:"residual"`

	Description string `json:"description,omitempty"`
	CreatedBy   int64  `json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines []Line `json:"lines"`
}

// Line is one invoice line item.
type Line struct {
	ID         int64 `json:"id"`
	InvoiceID  int64 `json:"invoice_id"`
	ItemID     int64 `json:"item_id"`
	LocationID int64 `json:"location_id"`

	// DestLocationID is set on transfer lines only.
	DestLocationID *int64 `json:"dest_location_id,omitempty"`

	Qty int64 `json:"qty"`

	// ReturnedQty accumulates on sale lines as returns come in.
	ReturnedQty int64 `json:"returned_qty,omitempty"`

	// UnitPrice is nil when the kind prices the line from the ledger.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Total     decimal.Decimal  `json:"total"`

	// SupplierNote carries merged supplier attributions on purchase lines
	// touched by transfers.
	SupplierNote string `json:"supplier_note,omitempty"`
	Description  string `json:"description,omitempty"`
}

// WarrantyReturn records a partial return against a warranty invoice.
// Warranty returns put stock back without touching cost layers; the
// write-off already priced the consumption.
type WarrantyReturn struct {
	ID         int64     `json:"id"`
	InvoiceID  int64     `json:"invoice_id"`
	ItemID     int64     `json:"item_id"`
	LocationID int64     `json:"location_id"`
	Qty        int64     `json:"qty"`
	ActorID    int64     `json:"actor_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// PurchaseRequestStatus tracks the separate approval of a purchase
// request; confirmation never moves stock.
type PurchaseRequestStatus string

const (
	RequestPending   PurchaseRequestStatus = "pending"
	RequestConfirmed PurchaseRequestStatus = "confirmed"
)

// PurchaseRequest is the approval record created alongside a
// purchase-request invoice.
type PurchaseRequest struct {
	ID        int64                 `json:"id"`
	InvoiceID int64                 `json:"invoice_id"`
	Status    PurchaseRequestStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// TransferEdit records one layer split performed by a transfer plus the
// edit it propagated into the owning purchase invoice's lines. Reversal
// replays these records backwards.
type TransferEdit struct {
	ID                int64 `json:"id"`
	TransferInvoiceID int64 `json:"transfer_invoice_id"`
	PurchaseInvoiceID int64 `json:"purchase_invoice_id"`
	ItemID            int64 `json:"item_id"`
	SourceLocationID  int64 `json:"source_location_id"`
	DestLocationID    int64 `json:"dest_location_id"`
	Qty               int64 `json:"qty"`

	// SrcLineDeleted marks that the purchase line at the source location
	// was removed entirely; SrcLineSnapshot holds it for restoration.
	SrcLineDeleted  bool  `json:"src_line_deleted"`
	SrcLineSnapshot *Line `json:"src_line_snapshot,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// recompute sets total and residual from the lines.
func (inv *Invoice) recompute() {
	total := decimal.Zero
	for _, line := range inv.Lines {
		total = total.Add(line.Total)
	}
	inv.Total = total
	inv.Residual = total.Sub(inv.Paid)
}
