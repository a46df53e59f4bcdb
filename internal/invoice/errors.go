package invoice

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a missing invoice, item or location.
	ErrNotFound = errors.New("invoice: not found")
	// ErrUnknownKind indicates an invoice kind outside the closed set.
	ErrUnknownKind = errors.New("invoice: unknown kind")
	// ErrDuplicateLineItem indicates the same item+location twice in one
	// invoice.
	ErrDuplicateLineItem = errors.New("invoice: duplicate item and location in one invoice")
	// ErrInvalidStateTransition indicates a workflow violation.
	ErrInvalidStateTransition = errors.New("invoice: invalid state transition")
	// ErrPriceRequired indicates a line missing its mandatory unit price.
	ErrPriceRequired = errors.New("invoice: unit price required")
	// ErrReturnExceedsSold indicates a return quantity above what remains
	// returnable on the original sale line.
	ErrReturnExceedsSold = errors.New("invoice: return exceeds sold quantity")
	// ErrValidation indicates a malformed draft.
	ErrValidation = errors.New("invoice: validation failed")
)

// StateError reports a refused workflow move.
type StateError struct {
	InvoiceID int64
	From      Status
	To        Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invoice %d cannot move from %s to %s", e.InvoiceID, e.From, e.To)
}

func (e *StateError) Unwrap() error { return ErrInvalidStateTransition }
