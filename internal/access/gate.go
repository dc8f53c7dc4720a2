package access

import (
	"errors"
	"fmt"
)

type Capability string

const (
	CapMutateOrderStatus      Capability = "mutate-order-status"
	CapViewOrders             Capability = "view-orders"
	CapViewRevenue            Capability = "view-revenue"
	CapManageMenu             Capability = "manage-menu"
	CapManageEmployees        Capability = "manage-employees"
	CapEditRestaurantSettings Capability = "edit-restaurant-settings"
)

var (
	ErrForbidden   = errors.New("forbidden")
	ErrNotApproved = errors.New("employment not approved")
)

var capabilities = map[Role]map[Capability]bool{
	RoleOwner: {
		CapMutateOrderStatus:      true,
		CapViewOrders:             true,
		CapViewRevenue:            true,
		CapManageMenu:             true,
		CapManageEmployees:        true,
		CapEditRestaurantSettings: true,
	},
	RoleAdmin: {
		CapMutateOrderStatus: true,
		CapViewOrders:        true,
		CapViewRevenue:       true,
		CapManageMenu:        true,
	},
	RoleCashier: {
		CapMutateOrderStatus: true,
		CapViewOrders:        true,
		CapViewRevenue:       true,
	},
	RoleWaiter: {
		CapViewOrders: true,
	},
}

// RoleHas looks a capability up in the role matrix, ignoring employment state.
func RoleHas(role Role, c Capability) bool {
	return capabilities[role][c]
}

// Require returns nil when p may use c. The employment gate is checked first,
// so a pending or rejected employee gets ErrNotApproved for every capability.
func Require(p Principal, c Capability) error {
	if !p.Approved() {
		return fmt.Errorf("%w: %s is %s", ErrNotApproved, p.Role, p.EmploymentStatus)
	}
	if !RoleHas(p.Role, c) {
		return fmt.Errorf("%w: role %s lacks %s", ErrForbidden, p.Role, c)
	}
	return nil
}

func Can(p Principal, c Capability) bool {
	return Require(p, c) == nil
}

// Panel is a dashboard section.
type Panel string

const (
	PanelOrders      Panel = "orders"
	PanelRevenue     Panel = "revenue"
	PanelAffirmation Panel = "affirmation"
	PanelEmployees   Panel = "employees"
	PanelMenu        Panel = "menu"
	PanelSettings    Panel = "settings"
)

type View struct {
	Blocked bool    `json:"blocked"`
	Panels  []Panel `json:"panels"`
}

// DashboardView lists the panels the dashboard renders for p. Staff without
// revenue access see the affirmation panel in its place.
func DashboardView(p Principal) View {
	if !p.Approved() {
		return View{Blocked: true, Panels: []Panel{}}
	}

	panels := []Panel{}
	if Can(p, CapViewOrders) {
		panels = append(panels, PanelOrders)
	}
	if Can(p, CapViewRevenue) {
		panels = append(panels, PanelRevenue)
	} else {
		panels = append(panels, PanelAffirmation)
	}
	if Can(p, CapManageMenu) {
		panels = append(panels, PanelMenu)
	}
	if Can(p, CapManageEmployees) {
		panels = append(panels, PanelEmployees)
	}
	if Can(p, CapEditRestaurantSettings) {
		panels = append(panels, PanelSettings)
	}
	return View{Panels: panels}
}
