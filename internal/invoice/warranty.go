package invoice

import (
	"context"
	"fmt"

	"github.com/stockyard-wms/stockyard/internal/ledger"
)

// applyWarranty writes stock off for warranty work. Consumption is
// scoped to the line's location first, widens to any location for the
// remainder, and falls back to the latest price last, so the write-off
// always posts.
func applyWarranty(ctx context.Context, repo TxRepository, inv *Invoice) error {
	st := repo.Ledger()
	for i := range inv.Lines {
		line := &inv.Lines[i]
		if _, err := ledger.DecrementStock(ctx, st, line.ItemID, line.LocationID, line.Qty); err != nil {
			return err
		}
		cons, err := ledger.Consume(ctx, st, ledger.ConsumeRequest{
			ConsumingInvoiceID: inv.ID,
			ItemID:             line.ItemID,
			LocationID:         line.LocationID,
			Qty:                line.Qty,
			Fallback:           ledger.FallbackLatestCost,
			WidenLocation:      true,
		})
		if err != nil {
			return err
		}
		unit := cons.EffectiveUnitCost()
		line.UnitPrice = &unit
		line.Total = cons.TotalCost
	}
	return nil
}

// reverseWarranty undoes the write-off. Refused once warranty returns
// exist: returned stock is already back on hand and full reversal would
// double-count it. The returns must be handled first.
func reverseWarranty(ctx context.Context, repo TxRepository, inv *Invoice) error {
	for _, line := range inv.Lines {
		returned, err := repo.WarrantyReturnedQty(ctx, inv.ID, line.ItemID, line.LocationID)
		if err != nil {
			return err
		}
		if returned > 0 {
			return fmt.Errorf("%w: warranty invoice %d has %d returned for item %d",
				ErrInvalidStateTransition, inv.ID, returned, line.ItemID)
		}
	}
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
