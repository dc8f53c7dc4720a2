package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/foodhub/internal/access"
	"github.com/vasiliy-maslov/foodhub/internal/employee"
	"github.com/vasiliy-maslov/foodhub/internal/order"
	"github.com/vasiliy-maslov/foodhub/internal/realtime"
	"github.com/vasiliy-maslov/foodhub/internal/review"
	"github.com/vasiliy-maslov/foodhub/internal/stats"
)

// StatsService is implemented by *stats.Aggregator.
type StatsService interface {
	ComputeStats(ctx context.Context, actor access.Principal, restaurantID uuid.UUID, w stats.Window) (stats.Stats, error)
	DailyReport(ctx context.Context, actor access.Principal, restaurantID uuid.UUID, day time.Time) (*stats.Report, error)
	Location() *time.Location
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending cooking completed cancelled"`
}

type DashboardResponse struct {
	Principal access.Principal `json:"principal"`
	View      access.View      `json:"view"`
}

// DashboardHandler serves the staff side. Every route expects a principal in
// the request context.
type DashboardHandler struct {
	orders     order.Service
	stats      StatsService
	employees  employee.Service
	reviews    review.Service
	subscriber Subscriber
	ws         *realtime.WSServer
	validate   *validator.Validate
	now        func() time.Time
}

func NewDashboardHandler(
	orders order.Service,
	statsSvc StatsService,
	employees employee.Service,
	reviews review.Service,
	subscriber Subscriber,
	ws *realtime.WSServer,
) *DashboardHandler {
	return &DashboardHandler{
		orders:     orders,
		stats:      statsSvc,
		employees:  employees,
		reviews:    reviews,
		subscriber: subscriber,
		ws:         ws,
		validate:   newValidator(),
		now:        time.Now,
	}
}

func (h *DashboardHandler) RegisterRoutes(router chi.Router) {
	router.Get("/", h.handleView)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{orderID}", h.handleGetOrder)
	router.Patch("/orders/{orderID}/status", h.handleUpdateStatus)
	router.Get("/stats", h.handleStats)
	router.Get("/report", h.handleReport)
	router.Get("/reviews", h.handleListReviews)
	router.Get("/ws", h.handleStream)

	router.Get("/employees", h.handleListEmployees)
	router.Post("/employees/{employeeID}/approve", h.handleApproveEmployee)
	router.Post("/employees/{employeeID}/reject", h.handleRejectEmployee)
	router.Delete("/employees/{employeeID}", h.handleRevokeEmployee)
}

// handleView answers for unapproved staff too; the client renders the
// blocking screen from the view.
func (h *DashboardHandler) handleView(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, DashboardResponse{Principal: p, View: access.DashboardView(p)})
}

func (h *DashboardHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := order.ListFilter{Status: order.Status(q.Get("status"))}
	if raw := q.Get("include_cancelled"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, CodeBadRequest, "Invalid include_cancelled parameter")
			return
		}
		filter.IncludeCancelled = v
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	filter.Limit = limit

	orders, err := h.orders.ListOrders(r.Context(), p, filter)
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to list orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *DashboardHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}

	o, err := h.orders.GetOrderForStaff(r.Context(), orderID, p)
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *DashboardHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	updated, err := h.orders.TransitionStatus(r.Context(), orderID, order.Status(req.Status), p)
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to update order status")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// handleStats defaults to the current calendar day in the restaurant timezone.
func (h *DashboardHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}

	window := stats.Day(h.now(), h.stats.Location())
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := time.Parse(time.RFC3339, q.Get("from"))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, CodeBadRequest, "Invalid from parameter, expected RFC3339")
			return
		}
		to, err := time.Parse(time.RFC3339, q.Get("to"))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, CodeBadRequest, "Invalid to parameter, expected RFC3339")
			return
		}
		window = stats.Window{From: from, To: to}
	}

	s, err := h.stats.ComputeStats(r.Context(), p, p.RestaurantID, window)
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to compute stats")
		return
	}
	respondWithJSON(w, http.StatusOK, s)
}

func (h *DashboardHandler) handleReport(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}

	day := h.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, h.stats.Location())
		if err != nil {
			respondWithError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("Invalid date %q, expected YYYY-MM-DD", raw))
			return
		}
		day = parsed
	}

	report, err := h.stats.DailyReport(r.Context(), p, p.RestaurantID, day)
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to build report")
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (h *DashboardHandler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}

	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	reviews, err := h.reviews.ListForRestaurant(r.Context(), p, limit)
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to list reviews")
		return
	}
	respondWithJSON(w, http.StatusOK, reviews)
}

// limitParam reads the optional limit query parameter; zero means the default.
func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, "Invalid limit parameter")
		return 0, false
	}
	return n, true
}

// handleStream pushes order notifications of the principal's restaurant.
func (h *DashboardHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := access.Require(p, access.CapViewOrders); err != nil {
		respondWithDomainError(w, r, err, "Failed to open stream")
		return
	}

	h.ws.Serve(w, r, func(ctx context.Context) (*realtime.Subscription, error) {
		return h.subscriber.SubscribeOrders(ctx, p.RestaurantID)
	})
}

func (h *DashboardHandler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}

	roster, err := h.employees.List(r.Context(), p)
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to list employees")
		return
	}
	respondWithJSON(w, http.StatusOK, roster)
}

func (h *DashboardHandler) handleApproveEmployee(w http.ResponseWriter, r *http.Request) {
	h.changeEmployee(w, r, h.employees.Approve)
}

func (h *DashboardHandler) handleRejectEmployee(w http.ResponseWriter, r *http.Request) {
	h.changeEmployee(w, r, h.employees.Reject)
}

func (h *DashboardHandler) changeEmployee(
	w http.ResponseWriter,
	r *http.Request,
	change func(context.Context, access.Principal, uuid.UUID) (*employee.Employee, error),
) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	employeeID, ok := uuidParam(w, r, "employeeID")
	if !ok {
		return
	}

	e, err := change(r.Context(), p, employeeID)
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to update employee")
		return
	}
	respondWithJSON(w, http.StatusOK, e)
}

func (h *DashboardHandler) handleRevokeEmployee(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	employeeID, ok := uuidParam(w, r, "employeeID")
	if !ok {
		return
	}

	if err := h.employees.Revoke(r.Context(), p, employeeID); err != nil {
		respondWithDomainError(w, r, err, "Failed to revoke employee")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
