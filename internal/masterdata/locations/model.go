package locations

import "time"

// Location represents a warehouse location. Rental locations hold stock
// reserved or lent out to customers.
type Location struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsRental  bool      `json:"is_rental"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
