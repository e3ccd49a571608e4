package notifications

import (
	"log/slog"
	"sync/atomic"
	"time"

	"buspass/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBufferSize = 64

	// Operators never send data on the feed, only control frames.
	maxInboundSize = 512
)

// Client is one operator connection on the review feed.
type Client struct {
	OperatorID uint
	// Send holds encoded events waiting for WritePump. The hub closes it
	// when the client is removed.
	Send chan []byte

	feed   *ReviewFeedHub
	conn   *websocket.Conn
	closed atomic.Bool
}

func newClient(feed *ReviewFeedHub, conn *websocket.Conn, operatorID uint) *Client {
	return &Client{
		OperatorID: operatorID,
		Send:       make(chan []byte, sendBufferSize),
		feed:       feed,
		conn:       conn,
	}
}

// close is called by the hub with its write lock held.
func (c *Client) close() bool {
	if !c.closed.CompareAndSwap(false, true) {
		return false
	}
	close(c.Send)
	return true
}

// TrySend queues an encoded event without blocking. Events for a slow or
// removed client are dropped and counted. The hub calls it under its read
// lock, so it never races with close.
func (c *Client) TrySend(message []byte) bool {
	if c.closed.Load() {
		observability.WebSocketBackpressureDrops.WithLabelValues(feedName, "closed").Inc()
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(feedName, "full").Inc()
		return false
	}
}

// ReadPump keeps the read deadline moving with pongs and returns when the
// operator disconnects. It removes the client from the feed on return.
func (c *Client) ReadPump() {
	defer func() {
		c.feed.UnregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.GlobalLogger.Warn("review feed read failed",
					slog.Uint64("operator_id", uint64(c.OperatorID)),
					slog.String("error", err.Error()))
			}
			return
		}
	}
}

// WritePump writes queued events and keepalive pings until Send is closed or
// a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "review feed closed"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
