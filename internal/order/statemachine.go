package order

import "github.com/vasiliy-maslov/foodhub/internal/access"

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusCooking:   true,
		StatusCancelled: true,
	},
	StatusCooking: {
		StatusCompleted: true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

type DenyReason string

const (
	DenyInvalidTransition DenyReason = "invalid_transition"
	DenyForbidden         DenyReason = "forbidden"
)

type Decision struct {
	Allowed bool
	From    Status
	Next    Status
	Role    access.Role
	Reason  DenyReason
}

// Err is nil for an allowed decision and a *TransitionError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &TransitionError{From: d.From, To: d.Next, Role: d.Role, Reason: d.Reason}
}

// NextStatus decides whether role may move an order from current to
// requested. Table legality is checked before the role.
func NextStatus(current, requested Status, role access.Role) Decision {
	d := Decision{From: current, Next: requested, Role: role}

	if !allowedTransitions[current][requested] {
		d.Reason = DenyInvalidTransition
		return d
	}
	if !access.RoleHas(role, access.CapMutateOrderStatus) {
		d.Reason = DenyForbidden
		return d
	}

	d.Allowed = true
	return d
}
