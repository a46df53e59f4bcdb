package invoice

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/ledger"
)

// applyVoid writes stock off. Unlike a sale it must always post, so the
// uncovered remainder is priced at the latest layer cost. An explicit
// line price overrides the drawn cost in the invoice total.
func applyVoid(ctx context.Context, repo TxRepository, inv *Invoice) error {
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
		})
		if err != nil {
			return err
		}
		if line.UnitPrice != nil {
			line.Total = line.UnitPrice.Mul(decimal.NewFromInt(line.Qty))
		} else {
			unit := cons.EffectiveUnitCost()
			line.UnitPrice = &unit
			line.Total = cons.TotalCost
		}
	}
	return nil
}

func reverseVoid(ctx context.Context, repo TxRepository, inv *Invoice) error {
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
