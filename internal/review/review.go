package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/foodhub/internal/access"
	"github.com/vasiliy-maslov/foodhub/internal/order"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 500
)

var (
	ErrReviewExists   = errors.New("order already has a review")
	ErrInvalidReview  = errors.New("invalid review")
	ErrOrderNotServed = errors.New("order is not completed yet")
)

type Review struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	OrderID      uuid.UUID `json:"order_id"`
	CustomerName string    `json:"customer_name"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

type SubmitInput struct {
	Rating  int
	Comment string
}

// OrderReader is the part of the order service reviews depend on.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
}

type Service interface {
	Submit(ctx context.Context, orderID uuid.UUID, input SubmitInput) (*Review, error)
	ListForRestaurant(ctx context.Context, actor access.Principal, limit int) ([]Review, error)
}

type service struct {
	repo   Repository
	orders OrderReader
	now    func() time.Time
}

func NewService(repo Repository, orders OrderReader) Service {
	return &service{repo: repo, orders: orders, now: time.Now}
}

func validate(input SubmitInput) error {
	if input.Rating < MinRating || input.Rating > MaxRating {
		return fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidReview, MinRating, MaxRating)
	}
	if utf8.RuneCountInString(input.Comment) > MaxCommentLength {
		return fmt.Errorf("%w: comment exceeds %d characters", ErrInvalidReview, MaxCommentLength)
	}
	return nil
}

// Submit stores the customer's only review of a completed order.
func (s *service) Submit(ctx context.Context, orderID uuid.UUID, input SubmitInput) (*Review, error) {
	input.Comment = strings.TrimSpace(input.Comment)
	if err := validate(input); err != nil {
		return nil, err
	}

	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load order %s: %w", orderID, err)
	}
	if o.Status != order.StatusCompleted {
		return nil, fmt.Errorf("service: order %s is %s: %w", orderID, o.Status, ErrOrderNotServed)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate review id: %w", err)
	}
	r := &Review{
		ID:           id,
		RestaurantID: o.RestaurantID,
		OrderID:      o.ID,
		CustomerName: o.CustomerName,
		Rating:       input.Rating,
		Comment:      input.Comment,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.Create(ctx, r); err != nil {
		if errors.Is(err, ErrReviewExists) {
			return nil, ErrReviewExists
		}
		return nil, fmt.Errorf("service: failed to save review: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Int("rating", r.Rating).Msg("Review submitted")
	return r, nil
}

func (s *service) ListForRestaurant(ctx context.Context, actor access.Principal, limit int) ([]Review, error) {
	if err := access.Require(actor, access.CapViewOrders); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if limit <= 0 || limit > order.MaxListLimit {
		limit = order.DefaultListLimit
	}

	reviews, err := s.repo.ListByRestaurant(ctx, actor.RestaurantID, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list reviews: %w", err)
	}
	return reviews, nil
}
