package rental

import (
	"errors"
	"fmt"
	"time"
)

// Status tracks a rented item through its lifecycle. Reserved stock sits
// in the rental warehouse awaiting hand-over; given stock is with the
// customer; returned stock is back in the rental warehouse; borrowed
// stock went back to the main warehouse instead.
type Status string

const (
	StatusReserved       Status = "reserved"
	StatusGiven          Status = "given"
	StatusReturned       Status = "returned"
	StatusBorrowedToMain Status = "borrowed_to_main"
)

// allowed transitions, keyed by current status.
var transitions = map[Status][]Status{
	StatusReserved: {StatusGiven},
	StatusGiven:    {StatusReturned, StatusBorrowedToMain},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RentedItem is one line of rented stock tied to its rental invoice.
type RentedItem struct {
	ID        int64     `json:"id"`
	InvoiceID int64     `json:"invoice_id"`
	ItemID    int64     `json:"item_id"`
	Qty       int64     `json:"qty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Counter is the rental warehouse stock position for one item. Qty is
// physical stock in the rental warehouse; Reserved is the part of Qty
// not yet handed to customers.
type Counter struct {
	ItemID   int64 `json:"item_id"`
	Qty      int64 `json:"qty"`
	Reserved int64 `json:"reserved"`
}

var (
	// ErrInvalidTransition indicates a status move outside the lifecycle.
	ErrInvalidTransition = errors.New("invalid rented item transition")
	// ErrNotFound indicates a missing rented item.
	ErrNotFound = errors.New("rented item not found")
)

// TransitionError reports the refused move.
type TransitionError struct {
	ID   int64
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("rented item %d cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
