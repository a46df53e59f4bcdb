package rental

import (
	"context"
	"fmt"
)

// Reserve books qty of an item into the rental warehouse for a rental
// invoice. The caller has already taken the stock out of the main
// warehouse in the same transaction.
func Reserve(ctx context.Context, st Store, invoiceID, itemID, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("rental: reserve quantity must be positive, got %d", qty)
	}
	c, err := st.CounterForUpdate(ctx, itemID)
	if err != nil {
		return 0, err
	}
	c.Qty += qty
	c.Reserved += qty
	if err := st.SetCounter(ctx, c); err != nil {
		return 0, err
	}
	return st.InsertRented(ctx, RentedItem{
		InvoiceID: invoiceID,
		ItemID:    itemID,
		Qty:       qty,
		Status:    StatusReserved,
	})
}

// ReleaseInvoice reverses Reserve for every rented item of the invoice.
// Refused unless all items are still reserved: stock already handed to a
// customer cannot be silently pulled back. Returns the released rows so
// the caller can put the quantity back into the main warehouse.
func ReleaseInvoice(ctx context.Context, st Store, invoiceID int64) ([]RentedItem, error) {
	items, err := st.RentedByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Status != StatusReserved {
			return nil, &TransitionError{ID: item.ID, From: item.Status, To: StatusReserved}
		}
	}
	for _, item := range items {
		c, err := st.CounterForUpdate(ctx, item.ItemID)
		if err != nil {
			return nil, err
		}
		c.Qty -= item.Qty
		c.Reserved -= item.Qty
		if err := st.SetCounter(ctx, c); err != nil {
			return nil, err
		}
	}
	if err := st.DeleteRentedByInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return items, nil
}

// Give hands a reserved item to the customer: the quantity physically
// leaves the rental warehouse.
func Give(ctx context.Context, st Store, id int64) (RentedItem, error) {
	item, err := transition(ctx, st, id, StatusGiven)
	if err != nil {
		return RentedItem{}, err
	}
	c, err := st.CounterForUpdate(ctx, item.ItemID)
	if err != nil {
		return RentedItem{}, err
	}
	c.Qty -= item.Qty
	c.Reserved -= item.Qty
	if err := st.SetCounter(ctx, c); err != nil {
		return RentedItem{}, err
	}
	return item, nil
}

// Return takes a given item back from the customer into the rental
// warehouse.
func Return(ctx context.Context, st Store, id int64) (RentedItem, error) {
	item, err := transition(ctx, st, id, StatusReturned)
	if err != nil {
		return RentedItem{}, err
	}
	c, err := st.CounterForUpdate(ctx, item.ItemID)
	if err != nil {
		return RentedItem{}, err
	}
	c.Qty += item.Qty
	if err := st.SetCounter(ctx, c); err != nil {
		return RentedItem{}, err
	}
	return item, nil
}

// BorrowToMain takes a given item back from the customer straight into
// the main warehouse, bypassing the rental warehouse. The caller
// increments main stock in the same transaction.
func BorrowToMain(ctx context.Context, st Store, id int64) (RentedItem, error) {
	return transition(ctx, st, id, StatusBorrowedToMain)
}

func transition(ctx context.Context, st Store, id int64, to Status) (RentedItem, error) {
	item, ok, err := st.RentedForUpdate(ctx, id)
	if err != nil {
		return RentedItem{}, err
	}
	if !ok {
		return RentedItem{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if !CanTransition(item.Status, to) {
		return RentedItem{}, &TransitionError{ID: item.ID, From: item.Status, To: to}
	}
	if err := st.SetRentedStatus(ctx, id, to); err != nil {
		return RentedItem{}, err
	}
	item.Status = to
	return item, nil
}
