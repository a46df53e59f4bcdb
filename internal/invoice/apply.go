package invoice

import (
	"context"
	"fmt"
)

// applyEffects runs the kind-specific stock, layer and trace mutations
// for a freshly built invoice. Line totals are set as a side effect.
// Everything runs on the one transaction behind repo.
func applyEffects(ctx context.Context, repo TxRepository, inv *Invoice) error {
	switch inv.Kind {
	case KindPurchase:
		return applyPurchase(ctx, repo, inv)
	case KindSale:
		return applySale(ctx, repo, inv)
	case KindReturn:
		return applyReturn(ctx, repo, inv)
	case KindVoid:
		return applyVoid(ctx, repo, inv)
	case KindWarranty:
		return applyWarranty(ctx, repo, inv)
	case KindBooking:
		return applyBooking(ctx, repo, inv)
	case KindRental:
		return applyRental(ctx, repo, inv)
	case KindTransfer:
		return applyTransfer(ctx, repo, inv)
	case KindPurchaseRequest:
		return applyPurchaseRequest(ctx, repo, inv)
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, inv.Kind)
}

// reverseEffects restores the exact pre-invoice state using the
// consumption trace and the transfer edit log. Used by both update
// (reverse then reapply) and delete.
func reverseEffects(ctx context.Context, repo TxRepository, inv *Invoice) error {
	switch inv.Kind {
	case KindPurchase:
		return reversePurchase(ctx, repo, inv)
	case KindSale:
		return reverseSale(ctx, repo, inv)
	case KindReturn:
		return reverseReturn(ctx, repo, inv)
	case KindVoid:
		return reverseVoid(ctx, repo, inv)
	case KindWarranty:
		return reverseWarranty(ctx, repo, inv)
	case KindBooking:
		return reverseBooking(ctx, repo, inv)
	case KindRental:
		return reverseRental(ctx, repo, inv)
	case KindTransfer:
		return reverseTransfer(ctx, repo, inv)
	case KindPurchaseRequest:
		return reversePurchaseRequest(ctx, repo, inv)
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, inv.Kind)
}

// buildLines turns line drafts into unsaved lines.
func buildLines(draft Draft) []Line {
	lines := make([]Line, 0, len(draft.Lines))
	for _, ld := range draft.Lines {
		lines = append(lines, Line{
			ItemID:         ld.ItemID,
			LocationID:     ld.LocationID,
			DestLocationID: ld.DestLocationID,
			Qty:            ld.Qty,
			UnitPrice:      ld.UnitPrice,
			Description:    ld.Description,
		})
	}
	return lines
}
