package handler_test

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/vasiliy-maslov/foodhub/internal/access"
	"github.com/vasiliy-maslov/foodhub/internal/employee"
	"github.com/vasiliy-maslov/foodhub/internal/menu"
	"github.com/vasiliy-maslov/foodhub/internal/order"
	"github.com/vasiliy-maslov/foodhub/internal/restaurant"
	"github.com/vasiliy-maslov/foodhub/internal/review"
	"github.com/vasiliy-maslov/foodhub/internal/stats"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, input order.CreateOrderInput) (*order.Order, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) TransitionStatus(ctx context.Context, orderID uuid.UUID, requested order.Status, actor access.Principal) (*order.Order, error) {
	args := m.Called(ctx, orderID, requested, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) GetOrderForStaff(ctx context.Context, orderID uuid.UUID, actor access.Principal) (*order.Order, error) {
	args := m.Called(ctx, orderID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, actor access.Principal, filter order.ListFilter) ([]order.Order, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) ReportPayment(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) ComputeStats(ctx context.Context, actor access.Principal, restaurantID uuid.UUID, w stats.Window) (stats.Stats, error) {
	args := m.Called(ctx, actor, restaurantID, w)
	return args.Get(0).(stats.Stats), args.Error(1)
}

func (m *MockStatsService) DailyReport(ctx context.Context, actor access.Principal, restaurantID uuid.UUID, day time.Time) (*stats.Report, error) {
	args := m.Called(ctx, actor, restaurantID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stats.Report), args.Error(1)
}

func (m *MockStatsService) Location() *time.Location {
	return time.UTC
}

type MockEmployeeService struct {
	mock.Mock
}

func (m *MockEmployeeService) List(ctx context.Context, actor access.Principal) (employee.Roster, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).(employee.Roster), args.Error(1)
}

func (m *MockEmployeeService) Approve(ctx context.Context, actor access.Principal, id uuid.UUID) (*employee.Employee, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*employee.Employee), args.Error(1)
}

func (m *MockEmployeeService) Reject(ctx context.Context, actor access.Principal, id uuid.UUID) (*employee.Employee, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*employee.Employee), args.Error(1)
}

func (m *MockEmployeeService) Revoke(ctx context.Context, actor access.Principal, id uuid.UUID) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Submit(ctx context.Context, orderID uuid.UUID, input review.SubmitInput) (*review.Review, error) {
	args := m.Called(ctx, orderID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*review.Review), args.Error(1)
}

func (m *MockReviewService) ListForRestaurant(ctx context.Context, actor access.Principal, limit int) ([]review.Review, error) {
	args := m.Called(ctx, actor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]review.Review), args.Error(1)
}

type stubRestaurants struct {
	bySlug map[string]*restaurant.Restaurant
}

func (s stubRestaurants) GetByID(_ context.Context, id uuid.UUID) (*restaurant.Restaurant, error) {
	for _, r := range s.bySlug {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, restaurant.ErrNotFound
}

func (s stubRestaurants) GetBySlug(_ context.Context, slug string) (*restaurant.Restaurant, error) {
	if r, ok := s.bySlug[slug]; ok {
		return r, nil
	}
	return nil, restaurant.ErrNotFound
}

type stubMenu struct {
	items      []menu.Item
	categories []menu.Category
}

func (s stubMenu) GetAvailableItems(context.Context, uuid.UUID) ([]menu.Item, error) {
	return s.items, nil
}

func (s stubMenu) ListCategories(context.Context, uuid.UUID) ([]menu.Category, error) {
	return s.categories, nil
}

type stubResolver struct {
	principals map[uuid.UUID]access.Principal
	err        error
}

func (s stubResolver) Resolve(_ context.Context, userID uuid.UUID) (access.Principal, error) {
	if s.err != nil {
		return access.Principal{}, s.err
	}
	p, ok := s.principals[userID]
	if !ok {
		return access.Principal{}, access.ErrUnknownPrincipal
	}
	return p, nil
}
