package employees

import "time"

// Role controls which approval steps an employee may perform.
type Role string

const (
	RoleEmployee             Role = "employee"
	RoleWarehouseManager     Role = "warehouse_manager"
	RoleAccreditationManager Role = "accreditation_manager"
)

// Employee supplies the acting identity for audit and approval fields.
// The directory is read-only from this service's point of view; tokens
// are provisioned out of band.
type Employee struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Token     string    `json:"-"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
