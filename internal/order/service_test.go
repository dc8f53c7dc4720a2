package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/foodhub/internal/access"
	"github.com/vasiliy-maslov/foodhub/internal/menu"
	"github.com/vasiliy-maslov/foodhub/internal/order"
	"github.com/vasiliy-maslov/foodhub/internal/realtime"
	"github.com/vasiliy-maslov/foodhub/internal/restaurant"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo      *MockRepository
	menu      *MockMenuReader
	settings  *MockSettings
	publisher *recordingPublisher
	stats     *recordingInvalidator
	svc       order.Service

	restaurantID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:         new(MockRepository),
		menu:         new(MockMenuReader),
		settings:     new(MockSettings),
		publisher:    &recordingPublisher{},
		stats:        &recordingInvalidator{},
		restaurantID: uuid.Must(uuid.NewV4()),
	}
	f.svc = order.NewService(f.repo, f.menu, f.settings, f.publisher,
		order.WithStatsInvalidator(f.stats),
		order.WithClock(func() time.Time { return fixedNow }),
	)
	t.Cleanup(func() {
		f.repo.AssertExpectations(t)
		f.menu.AssertExpectations(t)
		f.settings.AssertExpectations(t)
	})
	return f
}

func (f *fixture) openRestaurant() {
	f.settings.On("GetByID", mock.Anything, f.restaurantID).
		Return(&restaurant.Restaurant{ID: f.restaurantID, Name: "Warung Bu Sri", IsOpen: true}, nil).
		Once()
}

func (f *fixture) principal(role access.Role) access.Principal {
	return access.Principal{
		UserID:           uuid.Must(uuid.NewV4()),
		RestaurantID:     f.restaurantID,
		Role:             role,
		EmploymentStatus: access.EmploymentApproved,
	}
}

func (f *fixture) storedOrder(status order.Status) *order.Order {
	return &order.Order{
		ID:           uuid.Must(uuid.NewV4()),
		RestaurantID: f.restaurantID,
		CustomerName: "Budi",
		TableNumber:  "7",
		TotalAmount:  35000,
		Status:       status,
		Version:      1,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}
}

func TestService_CreateOrder_Success(t *testing.T) {
	f := newFixture(t)
	friedRice := menuItem("Fried Rice", 15000)
	icedTea := menuItem("Iced Tea", 5000)

	cart := order.NewCart()
	require.NoError(t, cart.Add(friedRice, 2))
	require.NoError(t, cart.Add(icedTea, 1))

	f.openRestaurant()
	f.menu.On("GetAvailableItems", mock.Anything, f.restaurantID).
		Return([]menu.Item{friedRice, icedTea}, nil).
		Once()
	f.repo.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o *order.Order) bool {
		return o.TotalAmount == 35000 && len(o.Lines) == 2 && o.Status == order.StatusPending
	})).Return(nil).Once()

	created, err := f.svc.CreateOrder(context.Background(), order.CreateOrderInput{
		RestaurantID: f.restaurantID,
		CustomerName: "  Budi  ",
		TableNumber:  "7",
		Cart:         cart,
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "Budi", created.CustomerName)
	assert.Equal(t, "7", created.TableNumber)
	assert.Equal(t, order.StatusPending, created.Status)
	assert.Equal(t, int64(35000), created.TotalAmount)
	assert.Equal(t, int64(1), created.Version)
	assert.Equal(t, fixedNow, created.CreatedAt)
	assert.Equal(t, created.LinesTotal(), created.TotalAmount)
	assert.Equal(t, "Fried Rice", created.Lines[0].Name)
	assert.Equal(t, 2, created.Lines[0].Quantity)
	assert.Equal(t, friedRice.ID, created.Lines[0].MenuItemID)

	published := f.publisher.notifications()
	require.Len(t, published, 1)
	assert.Equal(t, realtime.KindCreated, published[0].Kind)
	assert.Equal(t, created.ID, published[0].OrderID)
	assert.Equal(t, f.restaurantID, published[0].RestaurantID)
	assert.Equal(t, []uuid.UUID{f.restaurantID}, f.stats.calls())
}

func TestService_CreateOrder_TakeawayWhenNoTable(t *testing.T) {
	f := newFixture(t)
	item := menuItem("Fried Rice", 15000)
	cart := order.NewCart()
	require.NoError(t, cart.Add(item, 1))

	f.openRestaurant()
	f.menu.On("GetAvailableItems", mock.Anything, f.restaurantID).Return([]menu.Item{item}, nil).Once()
	f.repo.On("CreateOrder", mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil).Once()

	created, err := f.svc.CreateOrder(context.Background(), order.CreateOrderInput{
		RestaurantID: f.restaurantID,
		CustomerName: "Sari",
		TableNumber:  "   ",
		Cart:         cart,
	})
	require.NoError(t, err)
	assert.Equal(t, order.TableTakeaway, created.TableNumber)
	assert.True(t, created.Takeaway())
}

func TestService_CreateOrder_ValidationErrors(t *testing.T) {
	filled := order.NewCart()
	require.NoError(t, filled.Add(menuItem("Fried Rice", 15000), 1))

	tests := []struct {
		name      string
		input     func(f *fixture) order.CreateOrderInput
		wantField string
	}{
		{
			name: "blank_customer_name",
			input: func(f *fixture) order.CreateOrderInput {
				return order.CreateOrderInput{RestaurantID: f.restaurantID, CustomerName: " \t ", Cart: filled}
			},
			wantField: "customer_name",
		},
		{
			name: "empty_cart",
			input: func(f *fixture) order.CreateOrderInput {
				return order.CreateOrderInput{RestaurantID: f.restaurantID, CustomerName: "Budi", Cart: order.NewCart()}
			},
			wantField: "cart",
		},
		{
			name: "nil_cart",
			input: func(f *fixture) order.CreateOrderInput {
				return order.CreateOrderInput{RestaurantID: f.restaurantID, CustomerName: "Budi"}
			},
			wantField: "cart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.CreateOrder(context.Background(), tt.input(f))

			require.ErrorIs(t, err, order.ErrValidation)
			var verr *order.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
			f.repo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
			assert.Empty(t, f.publisher.notifications())
		})
	}
}

func TestService_CreateOrder_RestaurantClosed(t *testing.T) {
	f := newFixture(t)
	cart := order.NewCart()
	require.NoError(t, cart.Add(menuItem("Fried Rice", 15000), 1))

	f.settings.On("GetByID", mock.Anything, f.restaurantID).
		Return(&restaurant.Restaurant{ID: f.restaurantID, IsOpen: false}, nil).
		Once()

	_, err := f.svc.CreateOrder(context.Background(), order.CreateOrderInput{
		RestaurantID: f.restaurantID, CustomerName: "Budi", Cart: cart,
	})

	assert.ErrorIs(t, err, order.ErrValidation)
	assert.ErrorIs(t, err, order.ErrRestaurantClosed)
	f.menu.AssertNotCalled(t, "GetAvailableItems", mock.Anything, mock.Anything)
}

func TestService_CreateOrder_UnknownRestaurant(t *testing.T) {
	f := newFixture(t)
	cart := order.NewCart()
	require.NoError(t, cart.Add(menuItem("Fried Rice", 15000), 1))

	f.settings.On("GetByID", mock.Anything, f.restaurantID).Return(nil, restaurant.ErrNotFound).Once()

	_, err := f.svc.CreateOrder(context.Background(), order.CreateOrderInput{
		RestaurantID: f.restaurantID, CustomerName: "Budi", Cart: cart,
	})

	assert.ErrorIs(t, err, order.ErrRestaurantNotFound)
}

func TestService_CreateOrder_StaleCart(t *testing.T) {
	f := newFixture(t)
	friedRice := menuItem("Fried Rice", 15000)
	icedTea := menuItem("Iced Tea", 5000)
	satay := menuItem("Satay", 20000)

	cart := order.NewCart()
	require.NoError(t, cart.Add(friedRice, 2))
	require.NoError(t, cart.Add(icedTea, 1))
	require.NoError(t, cart.Add(satay, 1))

	repriced := icedTea
	repriced.UnitPrice = 6000

	f.openRestaurant()
	// Fried rice was taken off the menu, iced tea got more expensive.
	f.menu.On("GetAvailableItems", mock.Anything, f.restaurantID).
		Return([]menu.Item{repriced, satay}, nil).
		Once()

	_, err := f.svc.CreateOrder(context.Background(), order.CreateOrderInput{
		RestaurantID: f.restaurantID, CustomerName: "Budi", Cart: cart,
	})

	require.ErrorIs(t, err, order.ErrStaleCart)
	var stale *order.StaleCartError
	require.True(t, errors.As(err, &stale))
	require.Len(t, stale.Items, 2)
	assert.Equal(t, friedRice.ID, stale.Items[0].MenuItemID)
	assert.Equal(t, order.StaleUnavailable, stale.Items[0].Reason)
	assert.Equal(t, icedTea.ID, stale.Items[1].MenuItemID)
	assert.Equal(t, order.StalePriceChanged, stale.Items[1].Reason)
	assert.Equal(t, int64(5000), stale.Items[1].CartPrice)
	assert.Equal(t, int64(6000), stale.Items[1].CurrentPrice)

	f.repo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	assert.Empty(t, f.publisher.notifications())
}

func TestService_CreateOrder_RepositoryFailure(t *testing.T) {
	f := newFixture(t)
	item := menuItem("Fried Rice", 15000)
	cart := order.NewCart()
	require.NoError(t, cart.Add(item, 1))

	f.openRestaurant()
	f.menu.On("GetAvailableItems", mock.Anything, f.restaurantID).Return([]menu.Item{item}, nil).Once()
	dbErr := errors.New("connection refused")
	f.repo.On("CreateOrder", mock.Anything, mock.Anything).Return(dbErr).Once()

	_, err := f.svc.CreateOrder(context.Background(), order.CreateOrderInput{
		RestaurantID: f.restaurantID, CustomerName: "Budi", Cart: cart,
	})

	assert.ErrorIs(t, err, dbErr)
	assert.Empty(t, f.publisher.notifications())
}

func TestService_TransitionStatus_Success(t *testing.T) {
	f := newFixture(t)
	stored := f.storedOrder(order.StatusPending)
	updated := *stored
	updated.Status = order.StatusCooking
	updated.Version = 2

	f.repo.On("GetOrderByID", mock.Anything, stored.ID).Return(stored, nil).Once()
	f.repo.On("UpdateStatus", mock.Anything, stored.ID, order.StatusPending, order.StatusCooking).Return(&updated, nil).Once()

	got, err := f.svc.TransitionStatus(context.Background(), stored.ID, order.StatusCooking, f.principal(access.RoleCashier))
	require.NoError(t, err)
	assert.Equal(t, order.StatusCooking, got.Status)

	published := f.publisher.notifications()
	require.Len(t, published, 1)
	assert.Equal(t, realtime.KindUpdated, published[0].Kind)
	assert.Equal(t, int64(2), published[0].Version)
	assert.Equal(t, "cooking", published[0].Status)
	assert.Equal(t, []uuid.UUID{f.restaurantID}, f.stats.calls())
}

func TestService_TransitionStatus_CompletionInvalidatesStats(t *testing.T) {
	f := newFixture(t)
	stored := f.storedOrder(order.StatusCooking)
	updated := *stored
	updated.Status = order.StatusCompleted

	f.repo.On("GetOrderByID", mock.Anything, stored.ID).Return(stored, nil).Once()
	f.repo.On("UpdateStatus", mock.Anything, stored.ID, order.StatusCooking, order.StatusCompleted).Return(&updated, nil).Once()

	_, err := f.svc.TransitionStatus(context.Background(), stored.ID, order.StatusCompleted, f.principal(access.RoleOwner))
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{f.restaurantID}, f.stats.calls())
}

func TestService_TransitionStatus_Denied(t *testing.T) {
	tests := []struct {
		name      string
		status    order.Status
		requested order.Status
		actor     func(f *fixture) access.Principal
		loads     bool
		wantErr   error
	}{
		{
			name:      "waiter_forbidden",
			status:    order.StatusPending,
			requested: order.StatusCooking,
			actor:     func(f *fixture) access.Principal { return f.principal(access.RoleWaiter) },
			loads:     true,
			wantErr:   order.ErrForbidden,
		},
		{
			name:      "pending_employee",
			status:    order.StatusPending,
			requested: order.StatusCooking,
			actor: func(f *fixture) access.Principal {
				p := f.principal(access.RoleCashier)
				p.EmploymentStatus = access.EmploymentPending
				return p
			},
			wantErr: access.ErrNotApproved,
		},
		{
			name:      "other_restaurant",
			status:    order.StatusPending,
			requested: order.StatusCooking,
			actor: func(f *fixture) access.Principal {
				p := f.principal(access.RoleOwner)
				p.RestaurantID = uuid.Must(uuid.NewV4())
				return p
			},
			loads:   true,
			wantErr: order.ErrForbidden,
		},
		{
			name:      "skip_cooking",
			status:    order.StatusPending,
			requested: order.StatusCompleted,
			actor:     func(f *fixture) access.Principal { return f.principal(access.RoleAdmin) },
			loads:     true,
			wantErr:   order.ErrInvalidTransition,
		},
		{
			name:      "terminal",
			status:    order.StatusCancelled,
			requested: order.StatusCooking,
			actor:     func(f *fixture) access.Principal { return f.principal(access.RoleOwner) },
			loads:     true,
			wantErr:   order.ErrInvalidTransition,
		},
		{
			name:      "already_in_status",
			status:    order.StatusCooking,
			requested: order.StatusCooking,
			actor:     func(f *fixture) access.Principal { return f.principal(access.RoleCashier) },
			loads:     true,
			wantErr:   order.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			stored := f.storedOrder(tt.status)
			if tt.loads {
				f.repo.On("GetOrderByID", mock.Anything, stored.ID).Return(stored, nil).Once()
			}

			_, err := f.svc.TransitionStatus(context.Background(), stored.ID, tt.requested, tt.actor(f))

			assert.ErrorIs(t, err, tt.wantErr)
			f.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, f.publisher.notifications())
		})
	}
}

func TestService_TransitionStatus_LostRace(t *testing.T) {
	f := newFixture(t)
	stored := f.storedOrder(order.StatusPending)

	f.repo.On("GetOrderByID", mock.Anything, stored.ID).Return(stored, nil).Once()
	f.repo.On("UpdateStatus", mock.Anything, stored.ID, order.StatusPending, order.StatusCancelled).
		Return(nil, order.ErrConflict).
		Once()

	_, err := f.svc.TransitionStatus(context.Background(), stored.ID, order.StatusCancelled, f.principal(access.RoleCashier))

	assert.ErrorIs(t, err, order.ErrConflict)
	assert.Empty(t, f.publisher.notifications())
}

func TestService_TransitionStatus_NotFound(t *testing.T) {
	f := newFixture(t)
	id := uuid.Must(uuid.NewV4())
	f.repo.On("GetOrderByID", mock.Anything, id).Return(nil, order.ErrOrderNotFound).Once()

	_, err := f.svc.TransitionStatus(context.Background(), id, order.StatusCooking, f.principal(access.RoleOwner))

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestService_ReportPayment(t *testing.T) {
	t.Run("pending_order_is_flagged", func(t *testing.T) {
		f := newFixture(t)
		stored := f.storedOrder(order.StatusPending)
		flagged := *stored
		flagged.PaymentReported = true
		flagged.Version = 2

		f.repo.On("GetOrderByID", mock.Anything, stored.ID).Return(stored, nil).Once()
		f.repo.On("MarkPaymentReported", mock.Anything, stored.ID).Return(&flagged, nil).Once()

		got, err := f.svc.ReportPayment(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.True(t, got.PaymentReported)
		assert.Equal(t, order.StatusPending, got.Status)

		published := f.publisher.notifications()
		require.Len(t, published, 1)
		assert.Equal(t, realtime.KindUpdated, published[0].Kind)
	})

	t.Run("repeat_is_noop", func(t *testing.T) {
		f := newFixture(t)
		stored := f.storedOrder(order.StatusPending)
		stored.PaymentReported = true

		f.repo.On("GetOrderByID", mock.Anything, stored.ID).Return(stored, nil).Once()

		got, err := f.svc.ReportPayment(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.Equal(t, stored, got)
		f.repo.AssertNotCalled(t, "MarkPaymentReported", mock.Anything, mock.Anything)
		assert.Empty(t, f.publisher.notifications())
	})

	t.Run("not_pending", func(t *testing.T) {
		f := newFixture(t)
		stored := f.storedOrder(order.StatusCooking)

		f.repo.On("GetOrderByID", mock.Anything, stored.ID).Return(stored, nil).Once()

		_, err := f.svc.ReportPayment(context.Background(), stored.ID)
		assert.ErrorIs(t, err, order.ErrInvalidTransition)
	})

	t.Run("raced_with_transition", func(t *testing.T) {
		f := newFixture(t)
		stored := f.storedOrder(order.StatusPending)
		cancelled := *stored
		cancelled.Status = order.StatusCancelled

		f.repo.On("GetOrderByID", mock.Anything, stored.ID).Return(stored, nil).Once()
		f.repo.On("MarkPaymentReported", mock.Anything, stored.ID).Return(nil, order.ErrConflict).Once()
		f.repo.On("GetOrderByID", mock.Anything, stored.ID).Return(&cancelled, nil).Once()

		_, err := f.svc.ReportPayment(context.Background(), stored.ID)
		assert.ErrorIs(t, err, order.ErrInvalidTransition)
		assert.Empty(t, f.publisher.notifications())
		assert.Empty(t, f.stats.calls())
	})
}

func TestService_ListOrders(t *testing.T) {
	t.Run("waiter_can_read", func(t *testing.T) {
		f := newFixture(t)
		waiter := f.principal(access.RoleWaiter)
		filter := order.ListFilter{Status: order.StatusPending}
		orders := []order.Order{*f.storedOrder(order.StatusPending)}

		f.repo.On("ListOrders", mock.Anything, f.restaurantID, filter).Return(orders, nil).Once()

		got, err := f.svc.ListOrders(context.Background(), waiter, filter)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("rejected_employee", func(t *testing.T) {
		f := newFixture(t)
		p := f.principal(access.RoleCashier)
		p.EmploymentStatus = access.EmploymentRejected

		_, err := f.svc.ListOrders(context.Background(), p, order.ListFilter{})
		assert.ErrorIs(t, err, access.ErrNotApproved)
	})

	t.Run("unknown_status", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.ListOrders(context.Background(), f.principal(access.RoleOwner), order.ListFilter{Status: "shipped"})
		assert.ErrorIs(t, err, order.ErrValidation)
	})
}

func TestService_GetOrderForStaff(t *testing.T) {
	f := newFixture(t)
	stored := f.storedOrder(order.StatusPending)
	f.repo.On("GetOrderByID", mock.Anything, stored.ID).Return(stored, nil).Twice()

	got, err := f.svc.GetOrderForStaff(context.Background(), stored.ID, f.principal(access.RoleWaiter))
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)

	outsider := f.principal(access.RoleOwner)
	outsider.RestaurantID = uuid.Must(uuid.NewV4())
	_, err = f.svc.GetOrderForStaff(context.Background(), stored.ID, outsider)
	assert.ErrorIs(t, err, order.ErrForbidden)
}
