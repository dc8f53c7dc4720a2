package employee

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/foodhub/internal/access"
)

var (
	ErrNotFound        = errors.New("employee not found")
	ErrStatusUnchanged = errors.New("employee already has this status")
)

type Employee struct {
	ID           uuid.UUID               `json:"id"`
	UserID       uuid.UUID               `json:"user_id"`
	RestaurantID uuid.UUID               `json:"restaurant_id"`
	Name         string                  `json:"name"`
	Email        string                  `json:"email"`
	Role         access.Role             `json:"role"`
	Status       access.EmploymentStatus `json:"status"`
	CreatedAt    time.Time               `json:"created_at"`
}

// Roster splits a restaurant's staff the way the management page shows it.
type Roster struct {
	Pending  []Employee `json:"pending"`
	Approved []Employee `json:"approved"`
	Rejected []Employee `json:"rejected"`
}

func NewRoster(employees []Employee) Roster {
	r := Roster{Pending: []Employee{}, Approved: []Employee{}, Rejected: []Employee{}}
	for _, e := range employees {
		switch e.Status {
		case access.EmploymentApproved:
			r.Approved = append(r.Approved, e)
		case access.EmploymentRejected:
			r.Rejected = append(r.Rejected, e)
		default:
			r.Pending = append(r.Pending, e)
		}
	}
	return r
}
