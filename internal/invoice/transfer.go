package invoice

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/ledger"
)

// applyTransfer moves stock between locations. Cost layers split across
// locations keeping their source invoice id, and each split is
// propagated into the owning purchase invoice's lines so historical
// reports stay consistent. Every split is journalled as a transfer edit
// for exact reversal.
func applyTransfer(ctx context.Context, repo TxRepository, inv *Invoice) error {
	st := repo.Ledger()
	for i := range inv.Lines {
		line := &inv.Lines[i]
		dest := *line.DestLocationID

		if _, err := ledger.DecrementStock(ctx, st, line.ItemID, line.LocationID, line.Qty); err != nil {
			return err
		}
		if _, err := ledger.IncrementStock(ctx, st, line.ItemID, dest, line.Qty); err != nil {
			return err
		}

		layers, err := st.LayersForUpdate(ctx, line.ItemID, line.LocationID)
		if err != nil {
			return err
		}
		need := line.Qty
		moved := decimal.Zero
		for _, layer := range layers {
			if need == 0 {
				break
			}
			take := layer.Remaining
			if take > need {
				take = need
			}
			if take == 0 {
				continue
			}
			if err := ledger.SplitLayer(ctx, st, layer.Key, take, dest); err != nil {
				return err
			}
			edit := TransferEdit{
				TransferInvoiceID: inv.ID,
				PurchaseInvoiceID: layer.Key.SourceInvoiceID,
				ItemID:            line.ItemID,
				SourceLocationID:  line.LocationID,
				DestLocationID:    dest,
				Qty:               take,
			}
			layerEmpty := layer.Remaining == take
			if err := propagateSplit(ctx, repo, &edit, layerEmpty); err != nil {
				return err
			}
			if err := repo.InsertTransferEdit(ctx, &edit); err != nil {
				return err
			}
			moved = moved.Add(layer.UnitCost.Mul(decimal.NewFromInt(take)))
			need -= take
		}
		if need > 0 {
			return &ledger.PricedShortage{ItemID: line.ItemID, LocationID: line.LocationID, Unmet: need}
		}
		line.Total = moved
	}
	return nil
}

// propagateSplit mirrors one layer split into the owning purchase
// invoice's lines: shrink (or drop) the source-location line, grow (or
// create) the destination-location line.
func propagateSplit(ctx context.Context, repo TxRepository, edit *TransferEdit, layerEmpty bool) error {
	srcLine, ok, err := repo.LineForUpdate(ctx, edit.PurchaseInvoiceID, edit.ItemID, edit.SourceLocationID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: purchase %d has no line for item %d at location %d",
			ErrNotFound, edit.PurchaseInvoiceID, edit.ItemID, edit.SourceLocationID)
	}

	newQty := srcLine.Qty - edit.Qty
	if newQty <= 0 && layerEmpty {
		snapshot := srcLine
		edit.SrcLineDeleted = true
		edit.SrcLineSnapshot = &snapshot
		if err := repo.DeleteLine(ctx, srcLine.ID); err != nil {
			return err
		}
	} else {
		shrunk := srcLine
		shrunk.Qty = newQty
		if shrunk.UnitPrice != nil {
			shrunk.Total = shrunk.UnitPrice.Mul(decimal.NewFromInt(newQty))
		}
		if err := repo.UpdateLine(ctx, shrunk); err != nil {
			return err
		}
	}

	destLine, ok, err := repo.LineForUpdate(ctx, edit.PurchaseInvoiceID, edit.ItemID, edit.DestLocationID)
	if err != nil {
		return err
	}
	if ok {
		destLine.Qty += edit.Qty
		if destLine.UnitPrice != nil {
			destLine.Total = destLine.UnitPrice.Mul(decimal.NewFromInt(destLine.Qty))
		}
		destLine.SupplierNote = mergeNotes(destLine.SupplierNote, srcLine.SupplierNote)
		return repo.UpdateLine(ctx, destLine)
	}

	created := Line{
		InvoiceID:    edit.PurchaseInvoiceID,
		ItemID:       edit.ItemID,
		LocationID:   edit.DestLocationID,
		Qty:          edit.Qty,
		UnitPrice:    srcLine.UnitPrice,
		SupplierNote: srcLine.SupplierNote,
		Description:  appendNote(srcLine.Description, fmt.Sprintf("transferred from location %d", edit.SourceLocationID)),
	}
	if created.UnitPrice != nil {
		created.Total = created.UnitPrice.Mul(decimal.NewFromInt(created.Qty))
	}
	return repo.InsertLine(ctx, &created)
}

// reverseTransfer replays the edit journal backwards: unsplit each
// layer, restore the purchase invoice lines (including re-creating a
// deleted source line with its original metadata), then move the stock
// back.
func reverseTransfer(ctx context.Context, repo TxRepository, inv *Invoice) error {
	st := repo.Ledger()
	edits, err := repo.TransferEditsByInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	for i := len(edits) - 1; i >= 0; i-- {
		edit := edits[i]
		srcKey := ledger.LayerKey{
			SourceInvoiceID: edit.PurchaseInvoiceID,
			ItemID:          edit.ItemID,
			LocationID:      edit.SourceLocationID,
		}
		if err := ledger.UnsplitLayer(ctx, st, srcKey, edit.Qty, edit.DestLocationID); err != nil {
			return err
		}
		if err := unpropagateSplit(ctx, repo, edit); err != nil {
			return err
		}
	}
	if err := repo.DeleteTransferEdits(ctx, inv.ID); err != nil {
		return err
	}
	for _, line := range inv.Lines {
		dest := *line.DestLocationID
		if _, err := ledger.DecrementStock(ctx, st, line.ItemID, dest, line.Qty); err != nil {
			return err
		}
		if _, err := ledger.IncrementStock(ctx, st, line.ItemID, line.LocationID, line.Qty); err != nil {
			return err
		}
	}
	return nil
}

func unpropagateSplit(ctx context.Context, repo TxRepository, edit TransferEdit) error {
	destLine, ok, err := repo.LineForUpdate(ctx, edit.PurchaseInvoiceID, edit.ItemID, edit.DestLocationID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: purchase %d lost its line for item %d at location %d",
			ErrNotFound, edit.PurchaseInvoiceID, edit.ItemID, edit.DestLocationID)
	}
	if destLine.Qty <= edit.Qty {
		if err := repo.DeleteLine(ctx, destLine.ID); err != nil {
			return err
		}
	} else {
		destLine.Qty -= edit.Qty
		if destLine.UnitPrice != nil {
			destLine.Total = destLine.UnitPrice.Mul(decimal.NewFromInt(destLine.Qty))
		}
		if err := repo.UpdateLine(ctx, destLine); err != nil {
			return err
		}
	}

	if edit.SrcLineDeleted {
		restored := *edit.SrcLineSnapshot
		restored.ID = 0
		return repo.InsertLine(ctx, &restored)
	}
	srcLine, ok, err := repo.LineForUpdate(ctx, edit.PurchaseInvoiceID, edit.ItemID, edit.SourceLocationID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: purchase %d lost its line for item %d at location %d",
			ErrNotFound, edit.PurchaseInvoiceID, edit.ItemID, edit.SourceLocationID)
	}
	srcLine.Qty += edit.Qty
	if srcLine.UnitPrice != nil {
		srcLine.Total = srcLine.UnitPrice.Mul(decimal.NewFromInt(srcLine.Qty))
	}
	return repo.UpdateLine(ctx, srcLine)
}

func mergeNotes(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" || strings.Contains(a, b) {
		return a
	}
	return a + ", " + b
}

func appendNote(base, note string) string {
	if base == "" {
		return note
	}
	return base + " (" + note + ")"
}
