package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/ledger"
)

// applyReturn brings sold stock back. With an original invoice the
// source layers are restored in exact reverse consumption order and the
// sale line's returned quantity advances; without one the return is
// priced explicitly and opens a fresh layer like a purchase.
func applyReturn(ctx context.Context, repo TxRepository, inv *Invoice) error {
	if inv.OriginalInvoiceID != nil {
		return applyLinkedReturn(ctx, repo, inv, *inv.OriginalInvoiceID)
	}
	st := repo.Ledger()
	now := time.Now().UTC()
	for i := range inv.Lines {
		line := &inv.Lines[i]
		if _, err := ledger.IncrementStock(ctx, st, line.ItemID, line.LocationID, line.Qty); err != nil {
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

func applyLinkedReturn(ctx context.Context, repo TxRepository, inv *Invoice, originalID int64) error {
	original, err := repo.InvoiceForUpdate(ctx, originalID)
	if err != nil {
		return err
	}
	if original.Kind != KindSale {
		return fmt.Errorf("%w: invoice %d is a %s, returns need a sale", ErrValidation, originalID, original.Kind)
	}

	st := repo.Ledger()
	for i := range inv.Lines {
		line := &inv.Lines[i]
		saleLine, ok, err := repo.LineForUpdate(ctx, originalID, line.ItemID, line.LocationID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: sale %d has no line for item %d at location %d",
				ErrNotFound, originalID, line.ItemID, line.LocationID)
		}
		if line.Qty > saleLine.Qty-saleLine.ReturnedQty {
			return fmt.Errorf("%w: item %d, %d returnable, %d requested",
				ErrReturnExceedsSold, line.ItemID, saleLine.Qty-saleLine.ReturnedQty, line.Qty)
		}
		cons, err := ledger.ReturnToLayers(ctx, st, originalID, inv.ID, line.ItemID, line.Qty)
		if err != nil {
			return err
		}
		if err := repo.AddLineReturnedQty(ctx, saleLine.ID, line.Qty); err != nil {
			return err
		}
		if _, err := ledger.IncrementStock(ctx, st, line.ItemID, line.LocationID, line.Qty); err != nil {
			return err
		}
		unit := cons.EffectiveUnitCost()
		line.UnitPrice = &unit
		line.Total = cons.TotalCost
	}
	return nil
}

// reverseReturn undoes the restoration (or removes the fresh layer) and
// takes the stock back out.
func reverseReturn(ctx context.Context, repo TxRepository, inv *Invoice) error {
	st := repo.Ledger()
	if inv.OriginalInvoiceID == nil {
		if err := ledger.RemoveLayers(ctx, st, inv.ID); err != nil {
			return err
		}
	} else {
		if _, err := ledger.Restore(ctx, st, inv.ID); err != nil {
			return err
		}
		for _, line := range inv.Lines {
			saleLine, ok, err := repo.LineForUpdate(ctx, *inv.OriginalInvoiceID, line.ItemID, line.LocationID)
			if err != nil {
				return err
			}
			if ok {
				if err := repo.AddLineReturnedQty(ctx, saleLine.ID, -line.Qty); err != nil {
					return err
				}
			}
		}
	}
	for _, line := range inv.Lines {
		if _, err := ledger.DecrementStock(ctx, st, line.ItemID, line.LocationID, line.Qty); err != nil {
			return err
		}
	}
	return nil
}
