package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"buspass/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	feedName = "review_feed"

	maxConnsPerOperator = 4
	maxTotalConns       = 500
)

var (
	// ErrHubClosed is returned by Register after Shutdown.
	ErrHubClosed = errors.New("review feed is shutting down")
	// ErrFeedFull is returned when the server-wide connection cap is reached.
	ErrFeedFull = errors.New("review feed connection limit reached")
	// ErrTooManyOperatorConns is returned when one operator has too many tabs open.
	ErrTooManyOperatorConns = errors.New("operator connection limit reached")
)

// ReviewFeedHub fans review events out to connected operators.
type ReviewFeedHub struct {
	mu      sync.RWMutex
	byOp    map[uint]map[*Client]struct{}
	total   int
	stopped bool
}

// NewReviewFeedHub returns an empty hub.
func NewReviewFeedHub() *ReviewFeedHub {
	return &ReviewFeedHub{byOp: make(map[uint]map[*Client]struct{})}
}

// Name identifies the hub in startup and shutdown logs.
func (h *ReviewFeedHub) Name() string { return feedName }

// Register attaches conn for operatorID.
func (h *ReviewFeedHub) Register(operatorID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.stopped:
		return nil, ErrHubClosed
	case h.total >= maxTotalConns:
		return nil, ErrFeedFull
	case len(h.byOp[operatorID]) >= maxConnsPerOperator:
		return nil, ErrTooManyOperatorConns
	}

	if h.byOp[operatorID] == nil {
		h.byOp[operatorID] = make(map[*Client]struct{})
	}
	client := newClient(h, conn, operatorID)
	h.byOp[operatorID][client] = struct{}{}
	h.total++
	observability.WebSocketConnectionsTotal.Inc()
	observability.GlobalLogger.Info("review feed connected",
		slog.Uint64("operator_id", uint64(operatorID)), slog.Int("connections", h.total))
	return client, nil
}

// UnregisterClient detaches client and closes its queue. Repeated calls are no-ops.
func (h *ReviewFeedHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.byOp[client.OperatorID]
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.byOp, client.OperatorID)
	}
	h.total--
	if client.close() {
		observability.WebSocketConnectionsTotal.Dec()
	}
	observability.GlobalLogger.Info("review feed disconnected",
		slog.Uint64("operator_id", uint64(client.OperatorID)), slog.Int("connections", h.total))
}

// Connected returns the number of live connections.
func (h *ReviewFeedHub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// BroadcastEvent encodes ev once and queues it for every connection.
func (h *ReviewFeedHub) BroadcastEvent(ev ReviewEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		observability.GlobalLogger.Error("review event encode failed", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.byOp {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// StartWiring subscribes the hub to review events published through n.
func (h *ReviewFeedHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartReviewSubscriber(ctx, h.BroadcastEvent)
}

// Shutdown stops accepting connections and closes every queue, which makes
// each WritePump send a close frame.
func (h *ReviewFeedHub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	closed := 0
	for _, clients := range h.byOp {
		for c := range clients {
			if c.close() {
				observability.WebSocketConnectionsTotal.Dec()
				closed++
			}
		}
	}
	h.byOp = make(map[uint]map[*Client]struct{})
	h.total = 0
	observability.GlobalLogger.InfoContext(ctx, "review feed stopped", slog.Int("closed", closed))
	return nil
}
