package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stockyard-wms/stockyard/internal/ledger"
)

// CreateInvoice validates the draft, applies the kind's stock effects
// and persists the invoice with recomputed totals, all on the one
// transaction behind repo.
func CreateInvoice(ctx context.Context, repo TxRepository, draft Draft, actorID int64) (Invoice, error) {
	if err := validateDraft(draft); err != nil {
		return Invoice{}, err
	}
	if err := checkReferences(ctx, repo, draft); err != nil {
		return Invoice{}, err
	}

	now := time.Now().UTC()
	inv := Invoice{
		Ref:               uuid.New(),
		Kind:              draft.Kind,
		Status:            StatusDraft,
		SupplierID:        draft.SupplierID,
		MachineID:         draft.MachineID,
		MechanismID:       draft.MechanismID,
		OriginalInvoiceID: draft.OriginalInvoiceID,
		Paid:              draft.Paid,
		Description:       draft.Description,
		CreatedBy:         actorID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := repo.InsertInvoice(ctx, &inv); err != nil {
		return Invoice{}, err
	}

	inv.Lines = buildLines(draft)
	if err := applyEffects(ctx, repo, &inv); err != nil {
		return Invoice{}, err
	}
	for i := range inv.Lines {
		inv.Lines[i].InvoiceID = inv.ID
		if err := repo.InsertLine(ctx, &inv.Lines[i]); err != nil {
			return Invoice{}, err
		}
	}

	inv.recompute()
	if err := repo.UpdateInvoiceHeader(ctx, inv); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// UpdateInvoice reworks an invoice by reversing its effects and applying
// the new draft under the same id and ref. The kind is immutable.
func UpdateInvoice(ctx context.Context, repo TxRepository, id int64, draft Draft) (Invoice, error) {
	inv, err := repo.InvoiceForUpdate(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if draft.Kind != inv.Kind {
		return Invoice{}, fmt.Errorf("%w: invoice %d is a %s, drafts cannot change kind", ErrValidation, id, inv.Kind)
	}
	if err := validateDraft(draft); err != nil {
		return Invoice{}, err
	}
	if err := checkReferences(ctx, repo, draft); err != nil {
		return Invoice{}, err
	}

	if err := reverseEffects(ctx, repo, &inv); err != nil {
		return Invoice{}, err
	}
	if err := repo.DeleteLines(ctx, inv.ID); err != nil {
		return Invoice{}, err
	}

	inv.SupplierID = draft.SupplierID
	inv.MachineID = draft.MachineID
	inv.MechanismID = draft.MechanismID
	inv.OriginalInvoiceID = draft.OriginalInvoiceID
	inv.Paid = draft.Paid
	inv.Description = draft.Description
	inv.UpdatedAt = time.Now().UTC()

	inv.Lines = buildLines(draft)
	if err := applyEffects(ctx, repo, &inv); err != nil {
		return Invoice{}, err
	}
	for i := range inv.Lines {
		inv.Lines[i].InvoiceID = inv.ID
		if err := repo.InsertLine(ctx, &inv.Lines[i]); err != nil {
			return Invoice{}, err
		}
	}

	inv.recompute()
	if err := repo.UpdateInvoiceHeader(ctx, inv); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// DeleteInvoice reverses the invoice's effects and removes its rows.
func DeleteInvoice(ctx context.Context, repo TxRepository, id int64) error {
	inv, err := repo.InvoiceForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if err := reverseEffects(ctx, repo, &inv); err != nil {
		return err
	}
	if err := repo.DeleteLines(ctx, inv.ID); err != nil {
		return err
	}
	return repo.DeleteInvoice(ctx, inv.ID)
}

// SubmitInvoice moves draft to accreditation.
func SubmitInvoice(ctx context.Context, repo TxRepository, id int64) (Invoice, error) {
	return transitionInvoice(ctx, repo, id, StatusDraft, StatusAccreditation)
}

// AccreditInvoice moves accreditation to confirmed.
func AccreditInvoice(ctx context.Context, repo TxRepository, id int64) (Invoice, error) {
	return transitionInvoice(ctx, repo, id, StatusAccreditation, StatusConfirmed)
}

func transitionInvoice(ctx context.Context, repo TxRepository, id int64, from, to Status) (Invoice, error) {
	inv, err := repo.InvoiceForUpdate(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Status != from {
		return Invoice{}, &StateError{InvoiceID: id, From: inv.Status, To: to}
	}
	inv.Status = to
	inv.UpdatedAt = time.Now().UTC()
	if err := repo.UpdateInvoiceHeader(ctx, inv); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// ConfirmPurchaseRequest confirms the approval record of a
// purchase-request invoice. Stock is untouched.
func ConfirmPurchaseRequest(ctx context.Context, repo TxRepository, invoiceID int64) (PurchaseRequest, error) {
	pr, ok, err := repo.PurchaseRequestForUpdate(ctx, invoiceID)
	if err != nil {
		return PurchaseRequest{}, err
	}
	if !ok {
		return PurchaseRequest{}, fmt.Errorf("%w: purchase request for invoice %d", ErrNotFound, invoiceID)
	}
	if pr.Status != RequestPending {
		return PurchaseRequest{}, &StateError{InvoiceID: invoiceID, From: Status(pr.Status), To: Status(RequestConfirmed)}
	}
	if err := repo.UpdatePurchaseRequestStatus(ctx, pr.ID, RequestConfirmed); err != nil {
		return PurchaseRequest{}, err
	}
	pr.Status = RequestConfirmed
	return pr, nil
}

// RecordWarrantyReturn takes back part of a warranty write-off. Stock
// returns on hand without touching cost layers; the invoice status
// advances to partially_returned, then returned once every line is
// fully covered.
func RecordWarrantyReturn(ctx context.Context, repo TxRepository, invoiceID int64, form WarrantyReturnForm, actorID int64) (Invoice, error) {
	inv, err := repo.InvoiceForUpdate(ctx, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Kind != KindWarranty {
		return Invoice{}, fmt.Errorf("%w: invoice %d is a %s, warranty returns need a warranty", ErrValidation, invoiceID, inv.Kind)
	}

	// Lines are keyed by item and location; the same item may be written
	// off from several locations on one warranty, so the cap and the
	// returned tally are tracked per line.
	var target *Line
	for i := range inv.Lines {
		if inv.Lines[i].ItemID == form.ItemID && inv.Lines[i].LocationID == form.LocationID {
			target = &inv.Lines[i]
			break
		}
	}
	if target == nil {
		return Invoice{}, fmt.Errorf("%w: warranty %d has no line for item %d at location %d",
			ErrNotFound, invoiceID, form.ItemID, form.LocationID)
	}

	returned, err := repo.WarrantyReturnedQty(ctx, invoiceID, form.ItemID, form.LocationID)
	if err != nil {
		return Invoice{}, err
	}
	if form.Qty <= 0 || form.Qty > target.Qty-returned {
		return Invoice{}, fmt.Errorf("%w: item %d at location %d, %d returnable, %d requested",
			ErrReturnExceedsSold, form.ItemID, form.LocationID, target.Qty-returned, form.Qty)
	}

	wr := WarrantyReturn{InvoiceID: invoiceID, ItemID: form.ItemID, LocationID: form.LocationID, Qty: form.Qty, ActorID: actorID}
	if err := repo.InsertWarrantyReturn(ctx, &wr); err != nil {
		return Invoice{}, err
	}
	if _, err := ledger.IncrementStock(ctx, repo.Ledger(), form.ItemID, target.LocationID, form.Qty); err != nil {
		return Invoice{}, err
	}

	fully := true
	for _, line := range inv.Lines {
		lineReturned, err := repo.WarrantyReturnedQty(ctx, invoiceID, line.ItemID, line.LocationID)
		if err != nil {
			return Invoice{}, err
		}
		if lineReturned < line.Qty {
			fully = false
			break
		}
	}
	if fully {
		inv.Status = StatusReturned
	} else {
		inv.Status = StatusPartiallyReturned
	}
	inv.UpdatedAt = time.Now().UTC()
	if err := repo.UpdateInvoiceHeader(ctx, inv); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}
