package invoice

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/ledger"
)

// applyPurchaseRequest prices the requested lines at the latest layer
// cost and opens a pending approval record. No stock moves; confirming
// the request later is a separate status transition.
func applyPurchaseRequest(ctx context.Context, repo TxRepository, inv *Invoice) error {
	st := repo.Ledger()
	for i := range inv.Lines {
		line := &inv.Lines[i]
		cost, ok, err := ledger.LatestCost(ctx, st, line.ItemID)
		if err != nil {
			return err
		}
		if !ok {
			return &ledger.PricedShortage{ItemID: line.ItemID, Unmet: line.Qty}
		}
		price := cost
		line.UnitPrice = &price
		line.Total = price.Mul(decimal.NewFromInt(line.Qty))
	}
	pr := PurchaseRequest{InvoiceID: inv.ID, Status: RequestPending}
	return repo.InsertPurchaseRequest(ctx, &pr)
}

func reversePurchaseRequest(ctx context.Context, repo TxRepository, inv *Invoice) error {
	return repo.DeletePurchaseRequest(ctx, inv.ID)
}
