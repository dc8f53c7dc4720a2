package access

import (
	"github.com/gofrs/uuid"
)

type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
	RoleWaiter  Role = "waiter"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleCashier, RoleWaiter:
		return true
	}
	return false
}

type EmploymentStatus string

const (
	EmploymentPending  EmploymentStatus = "pending"
	EmploymentApproved EmploymentStatus = "approved"
	EmploymentRejected EmploymentStatus = "rejected"
)

func (s EmploymentStatus) String() string {
	return string(s)
}

// Principal is the authenticated staff member acting on a restaurant.
type Principal struct {
	UserID           uuid.UUID        `json:"user_id"`
	RestaurantID     uuid.UUID        `json:"restaurant_id"`
	Role             Role             `json:"role"`
	EmploymentStatus EmploymentStatus `json:"employment_status"`
}

// Approved reports whether the principal passed the employment gate.
// Owners are approved implicitly.
func (p Principal) Approved() bool {
	return p.Role == RoleOwner || p.EmploymentStatus == EmploymentApproved
}

// Owns reports whether the principal works for the given restaurant.
func (p Principal) Owns(restaurantID uuid.UUID) bool {
	return restaurantID != uuid.Nil && p.RestaurantID == restaurantID
}
