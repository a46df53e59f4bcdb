package invoice

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/ledger"
	"github.com/stockyard-wms/stockyard/internal/rental"
)

// applyRental moves stock from the main warehouse into the rental
// warehouse as reserved rented items. Cost is drawn FIFO like a sale;
// an explicit line price (the rental fee) overrides it in the total.
func applyRental(ctx context.Context, repo TxRepository, inv *Invoice) error {
	st := repo.Ledger()
	rs := repo.Rental()
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
			Fallback:           ledger.FallbackNone,
		})
		if err != nil {
			return err
		}
		if _, err := rental.Reserve(ctx, rs, inv.ID, line.ItemID, line.Qty); err != nil {
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

// reverseRental releases the reservation and puts stock and cost back.
// Refused once any rented item was handed to a customer.
func reverseRental(ctx context.Context, repo TxRepository, inv *Invoice) error {
	if _, err := rental.ReleaseInvoice(ctx, repo.Rental(), inv.ID); err != nil {
		return err
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
