package invoice

import (
	"context"

	"github.com/stockyard-wms/stockyard/internal/ledger"
	"github.com/stockyard-wms/stockyard/internal/rental"
)

// TxRepository is the transaction-scoped persistence port for invoice
// operations. One instance spans one database transaction, so invoice
// rows, ledger mutations and rental state commit or roll back together.
type TxRepository interface {
	InsertInvoice(ctx context.Context, inv *Invoice) error
	InvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	UpdateInvoiceHeader(ctx context.Context, inv Invoice) error
	DeleteInvoice(ctx context.Context, id int64) error

	InsertLine(ctx context.Context, line *Line) error
	UpdateLine(ctx context.Context, line Line) error
	DeleteLine(ctx context.Context, id int64) error
	DeleteLines(ctx context.Context, invoiceID int64) error
	AddLineReturnedQty(ctx context.Context, lineID, delta int64) error
	// LineForUpdate finds a specific invoice line by item and location.
	LineForUpdate(ctx context.Context, invoiceID, itemID, locationID int64) (Line, bool, error)

	ItemExists(ctx context.Context, id int64) (bool, error)
	LocationExists(ctx context.Context, id int64) (bool, error)

	InsertWarrantyReturn(ctx context.Context, wr *WarrantyReturn) error
	WarrantyReturnedQty(ctx context.Context, invoiceID, itemID, locationID int64) (int64, error)
	DeleteWarrantyReturns(ctx context.Context, invoiceID int64) error

	InsertPurchaseRequest(ctx context.Context, pr *PurchaseRequest) error
	PurchaseRequestForUpdate(ctx context.Context, invoiceID int64) (PurchaseRequest, bool, error)
	UpdatePurchaseRequestStatus(ctx context.Context, id int64, status PurchaseRequestStatus) error
	DeletePurchaseRequest(ctx context.Context, invoiceID int64) error

	InsertTransferEdit(ctx context.Context, edit *TransferEdit) error
	TransferEditsByInvoice(ctx context.Context, transferInvoiceID int64) ([]TransferEdit, error)
	DeleteTransferEdits(ctx context.Context, transferInvoiceID int64) error

	// Ledger and Rental expose the stock-side stores bound to the same
	// transaction.
	Ledger() ledger.Store
	Rental() rental.Store
}
