package invoice

import "github.com/shopspring/decimal"

// Draft is the caller's description of an invoice to create or the new
// shape of an invoice to update.
type Draft struct {
	Kind              Kind        `json:"kind" validate:"required"`
	SupplierID        *int64      `json:"supplier_id" validate:"omitempty,gt=0"`
	MachineID         *int64      `json:"machine_id" validate:"omitempty,gt=0"`
	MechanismID       *int64      `json:"mechanism_id" validate:"omitempty,gt=0"`
	OriginalInvoiceID *int64      `json:"original_invoice_id" validate:"omitempty,gt=0"`
	Paid              decimal.Decimal `json:"paid"`
	Description       string      `json:"description" validate:"max=500"`
	Lines             []LineDraft `json:"lines" validate:"required,min=1,dive"`
}

// LineDraft is one requested line item.
type LineDraft struct {
	ItemID         int64            `json:"item_id" validate:"required,gt=0"`
	LocationID     int64            `json:"location_id" validate:"required,gt=0"`
	DestLocationID *int64           `json:"dest_location_id" validate:"omitempty,gt=0"`
	Qty            int64            `json:"qty" validate:"required,gt=0"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	Description    string           `json:"description" validate:"max=500"`
}

// WarrantyReturnForm requests a partial return on a warranty invoice.
// The location picks the exact line: a warranty may carry the same item
// written off from several locations.
type WarrantyReturnForm struct {
	ItemID     int64 `json:"item_id" validate:"required,gt=0"`
	LocationID int64 `json:"location_id" validate:"required,gt=0"`
	Qty        int64 `json:"qty" validate:"required,gt=0"`
}
