package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// OpenFunc opens the subscription a session follows. It runs before the
// upgrade so that failures can still be reported as plain HTTP errors.
type OpenFunc func(ctx context.Context) (*Subscription, error)

// WSServer serves realtime sessions over WebSocket. Each session gets a
// snapshot frame first and then one frame per notification.
type WSServer struct {
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
}

func NewWSServer() *WSServer {
	return &WSServer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingPeriod: pingPeriod,
	}
}

func (s *WSServer) Serve(w http.ResponseWriter, r *http.Request, open OpenFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := open(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("realtime: failed to open subscription")
		http.Error(w, "realtime unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("realtime: websocket upgrade failed")
		return
	}
	defer conn.Close()

	go readPump(conn, cancel)
	s.writePump(ctx, conn, sub)
}

// readPump only exists to process pongs and notice the peer going away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *WSServer) writePump(ctx context.Context, conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	if err := writeFrame(conn, Notification{Kind: KindSnapshot, OccurredAt: time.Now().UTC()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			closeConn(conn, websocket.CloseGoingAway, "session closed")
			return
		case n, ok := <-sub.C():
			if !ok {
				if errors.Is(sub.Err(), ErrSubscriberLagging) {
					closeConn(conn, websocket.CloseTryAgainLater, "lagging")
				} else {
					closeConn(conn, websocket.CloseGoingAway, "session closed")
				}
				return
			}
			if err := writeFrame(conn, n); err != nil {
				log.Debug().Err(err).Msg("realtime: websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, n Notification) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(n)
}

func closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
