package items

import "time"

// Item represents a stocked item. Identity (name/barcode) is unique;
// metadata is freely editable.
type Item struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Barcode   string    `json:"barcode"`
	Unit      string    `json:"unit"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
