package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/foodhub/internal/menu"
	"github.com/vasiliy-maslov/foodhub/internal/order"
	"github.com/vasiliy-maslov/foodhub/internal/realtime"
	"github.com/vasiliy-maslov/foodhub/internal/restaurant"
	"github.com/vasiliy-maslov/foodhub/internal/review"
)

// Subscriber opens realtime subscriptions; *realtime.Hub implements it.
type Subscriber interface {
	SubscribeOrders(ctx context.Context, restaurantID uuid.UUID) (*realtime.Subscription, error)
	SubscribeOrder(ctx context.Context, orderID uuid.UUID) (*realtime.Subscription, error)
}

type CartItemRequest struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	UnitPrice  int64     `json:"unit_price" validate:"min=0"`
	Quantity   int       `json:"quantity" validate:"min=1"`
}

type CreateOrderRequest struct {
	CustomerName string            `json:"customer_name" validate:"required,max=100"`
	TableNumber  string            `json:"table_number" validate:"max=20"`
	Items        []CartItemRequest `json:"items" validate:"required,min=1,dive"`
}

type SubmitReviewRequest struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=500"`
}

type MenuResponse struct {
	Restaurant *restaurant.Restaurant `json:"restaurant"`
	Groups     []menu.Group           `json:"groups"`
}

// PublicHandler serves the customer side: menu, ordering and tracking.
type PublicHandler struct {
	restaurants restaurant.Repository
	menu        menu.Reader
	orders      order.Service
	reviews     review.Service
	subscriber  Subscriber
	ws          *realtime.WSServer
	validate    *validator.Validate
}

func NewPublicHandler(
	restaurants restaurant.Repository,
	menuReader menu.Reader,
	orders order.Service,
	reviews review.Service,
	subscriber Subscriber,
	ws *realtime.WSServer,
) *PublicHandler {
	return &PublicHandler{
		restaurants: restaurants,
		menu:        menuReader,
		orders:      orders,
		reviews:     reviews,
		subscriber:  subscriber,
		ws:          ws,
		validate:    newValidator(),
	}
}

func (h *PublicHandler) RegisterRoutes(router chi.Router) {
	router.Get("/restaurants/{slug}/menu", h.handleGetMenu)
	router.Post("/restaurants/{restaurantID}/orders", h.handleCreateOrder)
	router.Get("/orders/{orderID}", h.handleGetOrder)
	router.Post("/orders/{orderID}/payment", h.handleReportPayment)
	router.Post("/orders/{orderID}/reviews", h.handleSubmitReview)
	router.Get("/orders/{orderID}/ws", h.handleTrackOrder)
}

func (h *PublicHandler) handleGetMenu(w http.ResponseWriter, r *http.Request) {
	rest, err := h.restaurants.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to get restaurant")
		return
	}

	items, err := h.menu.GetAvailableItems(r.Context(), rest.ID)
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to get menu")
		return
	}
	categories, err := h.menu.ListCategories(r.Context(), rest.ID)
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to get menu")
		return
	}

	respondWithJSON(w, http.StatusOK, MenuResponse{
		Restaurant: rest,
		Groups:     menu.GroupByCategory(items, categories),
	})
}

func (h *PublicHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := uuidParam(w, r, "restaurantID")
	if !ok {
		return
	}

	var req CreateOrderRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	cart := order.NewCart()
	for _, item := range req.Items {
		err := cart.Add(menu.Item{ID: item.MenuItemID, RestaurantID: restaurantID, Name: item.Name, UnitPrice: item.UnitPrice}, item.Quantity)
		if err != nil {
			respondWithDomainError(w, r, err, "Failed to build cart")
			return
		}
	}

	created, err := h.orders.CreateOrder(r.Context(), order.CreateOrderInput{
		RestaurantID: restaurantID,
		CustomerName: req.CustomerName,
		TableNumber:  req.TableNumber,
		Cart:         cart,
	})
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to create order")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *PublicHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *PublicHandler) handleReportPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}

	o, err := h.orders.ReportPayment(r.Context(), orderID)
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to report payment")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *PublicHandler) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}

	var req SubmitReviewRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	rv, err := h.reviews.Submit(r.Context(), orderID, review.SubmitInput{Rating: req.Rating, Comment: req.Comment})
	if err != nil {
		respondWithDomainError(w, r, err, "Failed to submit review")
		return
	}
	respondWithJSON(w, http.StatusCreated, rv)
}

// handleTrackOrder streams status changes of one order to the customer.
func (h *PublicHandler) handleTrackOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}

	if _, err := h.orders.GetOrder(r.Context(), orderID); err != nil {
		respondWithDomainError(w, r, err, "Failed to get order")
		return
	}

	h.ws.Serve(w, r, func(ctx context.Context) (*realtime.Subscription, error) {
		return h.subscriber.SubscribeOrder(ctx, orderID)
	})
}
