package realtime_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/foodhub/internal/realtime"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) realtime.Notification {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var n realtime.Notification
	require.NoError(t, conn.ReadJSON(&n))
	return n
}

func TestWSServer_SnapshotThenNotifications(t *testing.T) {
	hub := realtime.NewHub(8)
	ws := realtime.NewWSServer()
	restaurantID := uuid.Must(uuid.NewV4())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.Serve(w, r, func(ctx context.Context) (*realtime.Subscription, error) {
			return hub.SubscribeOrders(ctx, restaurantID)
		})
	}))
	defer srv.Close()

	conn := dial(t, srv)

	assert.Equal(t, realtime.KindSnapshot, readFrame(t, conn).Kind)

	orderID := uuid.Must(uuid.NewV4())
	hub.Publish(context.Background(), newNotification(realtime.KindCreated, restaurantID, orderID, 1))

	got := readFrame(t, conn)
	assert.Equal(t, realtime.KindCreated, got.Kind)
	assert.Equal(t, orderID, got.OrderID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWSServer_ClosedHubEndsSession(t *testing.T) {
	hub := realtime.NewHub(8)
	ws := realtime.NewWSServer()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.Serve(w, r, func(ctx context.Context) (*realtime.Subscription, error) {
			return hub.SubscribeOrder(ctx, uuid.Must(uuid.NewV4()))
		})
	}))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	readFrame(t, conn)

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "expected close frame, got %v", err)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
}

func TestWSServer_OpenFailure(t *testing.T) {
	ws := realtime.NewWSServer()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rr := httptest.NewRecorder()

	ws.Serve(rr, req, func(context.Context) (*realtime.Subscription, error) {
		return nil, realtime.ErrHubClosed
	})

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
