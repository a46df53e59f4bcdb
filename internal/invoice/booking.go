package invoice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/ledger"
)

// applyBooking sets stock aside at an agreed price: the quantity leaves
// the on-hand count and a layer keyed by this invoice carries it at the
// requested price. The booking does not consume FIFO.
func applyBooking(ctx context.Context, repo TxRepository, inv *Invoice) error {
	st := repo.Ledger()
	now := time.Now().UTC()
	for i := range inv.Lines {
		line := &inv.Lines[i]
		if _, err := ledger.DecrementStock(ctx, st, line.ItemID, line.LocationID, line.Qty); err != nil {
			return err
		}
		key := ledger.LayerKey{SourceInvoiceID: inv.ID, ItemID: line.ItemID, LocationID: line.LocationID}
		if err := ledger.CreateLayer(ctx, st, key, line.Qty, *line.UnitPrice, now); err != nil {
			return err
		}
		line.Total = line.UnitPrice.Mul(decimal.NewFromInt(line.Qty))
	}
	return nil
}

func reverseBooking(ctx context.Context, repo TxRepository, inv *Invoice) error {
	st := repo.Ledger()
	if err := ledger.RemoveLayers(ctx, st, inv.ID); err != nil {
		return err
	}
	for _, line := range inv.Lines {
		if _, err := ledger.IncrementStock(ctx, st, line.ItemID, line.LocationID, line.Qty); err != nil {
			return err
		}
	}
	return nil
}
