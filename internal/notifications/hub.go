package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"campusboard/internal/middleware"
	"campusboard/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	errServerLimit = errors.New("server connection limit reached")
	errUserLimit   = errors.New("user connection limit reached")
)

// Hub is a websocket hub that maps userID -> set of Clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	log        *observability.WSLogger
	closed     bool
}

// NewHub creates a new Hub instance for realtime domain events.
func NewHub() *Hub {
	h := &Hub{conns: make(map[uint]map[*Client]struct{})}
	h.log = observability.NewWSLogger(h.Name())
	return h
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "event hub" }

// Register a connection for a given user. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID uint, moderator bool, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.totalConns >= maxTotalConns {
		return nil, errServerLimit
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, errUserLimit
	}

	client := newClient(h, conn, userID, moderator)
	m[client] = struct{}{}
	h.totalConns++
	middleware.ActiveWebSockets.Inc()
	h.log.LogConnect(context.Background(), userID)
	return client, nil
}

// UnregisterClient removes client from the hub. Repeated calls are no-ops.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.close()
	m, ok := h.conns[client.userID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	h.totalConns--
	middleware.ActiveWebSockets.Dec()
	if len(m) == 0 {
		delete(h.conns, client.userID)
	}
	h.log.LogDisconnect(context.Background(), client.userID, "unregistered")
}

// Broadcast sends message to all connections for userID
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.conns[userID]; ok {
		data := []byte(message)
		for c := range clients {
			c.Deliver(data)
		}
	}
}

// BroadcastAll sends message to every connected websocket client.
func (h *Hub) BroadcastAll(message string) {
	h.send(message, func(*Client) bool { return true })
}

// BroadcastModerators sends message to connections opened by admins and faculty.
func (h *Hub) BroadcastModerators(message string) {
	h.send(message, func(c *Client) bool { return c.moderator })
}

func (h *Hub) send(message string, match func(*Client) bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			if match(c) {
				c.Deliver(data)
			}
		}
	}
}

// ConnectionCount reports the number of registered clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// Deliver routes a payload received on channel to the matching connections.
func (h *Hub) Deliver(channel, payload string) {
	switch channel {
	case broadcastChannel:
		h.BroadcastAll(payload)
	case moderatorChannel:
		h.BroadcastModerators(payload)
	default:
		userID, ok := parseUserChannel(channel)
		if !ok {
			middleware.Logger.Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		h.Broadcast(userID, payload)
	}
}

// StartWiring connects the Notifier to this hub: it subscribes to the Redis
// channels and forwards messages to matching connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, h.Deliver)
}

// Shutdown closes every connection. Each client's write loop sends the close
// frame itself so no two goroutines write to one connection.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true

	for userID, userConns := range h.conns {
		for client := range userConns {
			middleware.ActiveWebSockets.Dec()
			client.close()
			h.log.LogDisconnect(ctx, userID, "shutdown")
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
