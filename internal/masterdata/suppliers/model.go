package suppliers

import "time"

// Kind classifies a directory entry. Invoices may reference any of the
// three kinds; all are optional, read-only attributions.
type Kind string

const (
	KindSupplier  Kind = "supplier"
	KindMachine   Kind = "machine"
	KindMechanism Kind = "mechanism"
)

func (k Kind) Valid() bool {
	switch k {
	case KindSupplier, KindMachine, KindMechanism:
		return true
	}
	return false
}

// Supplier represents a supplier, machine or mechanism directory entry.
type Supplier struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
