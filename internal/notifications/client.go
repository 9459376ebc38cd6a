package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"campusboard/internal/middleware"
	"campusboard/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must stay below pongWait
	maxMessageSize = 4096
	sendBuffer     = 128
)

// streamGapNotice tells a client that events were dropped so it re-reads the
// feed instead of trusting its local copy.
var streamGapNotice = []byte(`{"type":"stream_gap","payload":{"reason":"buffer_full"}}`)

// Client is one websocket connection subscribed to the event stream.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	userID    uint
	moderator bool

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint, moderator bool) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		userID:    userID,
		moderator: moderator,
		done:      make(chan struct{}),
	}
}

// UserID is the authenticated owner of the connection.
func (c *Client) UserID() uint { return c.userID }

// Moderator reports whether the connection receives verification queue events.
func (c *Client) Moderator() bool { return c.moderator }

// Serve pumps events to the peer and client frames to onMessage until either
// side goes away. onMessage may be nil.
func (c *Client) Serve(onMessage func(*Client, []byte)) {
	go c.writeLoop()
	c.readLoop(onMessage)
}

// Deliver queues message without blocking and reports whether it was queued.
// A full buffer drops the message and queues a stream_gap notice when room
// remains for it.
func (c *Client) Deliver(message []byte) bool {
	select {
	case <-c.done:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "closed").Inc()
		return false
	default:
	}

	select {
	case c.send <- message:
		return true
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "full").Inc()
	middleware.Logger.Warn("websocket buffer full, dropped event",
		slog.Any("user_id", c.userID), slog.String("hub", c.hub.Name()))
	select {
	case c.send <- streamGapNotice:
	default:
	}
	return false
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) readLoop(onMessage func(*Client, []byte)) {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.LogError(context.Background(), c.userID, err, "read")
			}
			return
		}
		if onMessage != nil {
			onMessage(c, message)
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
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
