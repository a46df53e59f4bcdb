package invoice

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/ledger"
)

// applySale takes stock out and draws cost FIFO, strictly: a sale that
// the layers cannot fully price is refused.
func applySale(ctx context.Context, repo TxRepository, inv *Invoice) error {
	st := repo.Ledger()
	for i := range inv.Lines {
		line := &inv.Lines[i]
		if _, err := ledger.DecrementStock(ctx, st, line.ItemID, line.LocationID, line.Qty); err != nil {
			return err
		}
		_, err := ledger.Consume(ctx, st, ledger.ConsumeRequest{
			ConsumingInvoiceID: inv.ID,
			ItemID:             line.ItemID,
			LocationID:         line.LocationID,
			Qty:                line.Qty,
			Fallback:           ledger.FallbackNone,
		})
		if err != nil {
			return err
		}
		line.Total = line.UnitPrice.Mul(decimal.NewFromInt(line.Qty))
	}
	return nil
}

// reverseSale puts the drawn quantity back into its source layers and
// the stock back on hand. Blocked while a return references the sale's
// trace entries.
func reverseSale(ctx context.Context, repo TxRepository, inv *Invoice) error {
	st := repo.Ledger()
	if _, err := ledger.Restore(ctx, st, inv.ID); err != nil {
		return err
	}
	for _, line := range inv.Lines {
		if _, err := ledger.IncrementStock(ctx, st, line.ItemID, line.LocationID, line.Qty); err != nil {
			return err
		}
	}
	return nil
}
