package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Limits bound a connection's reads and keepalives.
type Limits struct {
	WriteWait      time.Duration
	// ReadTimeout is how long a connection may go without a pong or a message.
	// Any inbound frame extends it, so a phone reporting location keeps it open.
	ReadTimeout    time.Duration
	MaxMessageSize int64
}

// DefaultLimits leave room for a create_room carrying dozens of zones and schedules.
func DefaultLimits() Limits {
	return Limits{
		WriteWait:      10 * time.Second,
		ReadTimeout:    90 * time.Second,
		MaxMessageSize: 32 << 10,
	}
}

func (l Limits) pingPeriod() time.Duration {
	return l.ReadTimeout * 9 / 10
}

// Client represents a single WebSocket connection.
type Client struct {
	ID     string
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	limits Limits
}

// NewClient creates a new Client using the hub's limits.
func NewClient(id string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		limits: hub.Limits,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.limits.MaxMessageSize)
	c.extendRead()
	c.Conn.SetPongHandler(func(string) error {
		c.extendRead()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("websocket read error", "client", c.ID, "error", err)
			}
			break
		}
		c.extendRead()
		select {
		case c.Hub.Incoming <- &ClientMessage{Client: c, Data: message}:
		case <-c.Hub.done:
			return
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.limits.pingPeriod())
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.limits.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.limits.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) extendRead() {
	c.Conn.SetReadDeadline(time.Now().Add(c.limits.ReadTimeout))
}

// SendMessage sends a Message to this client without blocking. Messages are dropped
// when the client's buffer is full.
func (c *Client) SendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal message", "error", err)
		return
	}
	select {
	case c.Send <- data:
	default:
		slog.Warn("client send buffer full, dropping message", "client", c.ID)
	}
}

// ClientMessage wraps a raw message with its source client.
type ClientMessage struct {
	Client *Client
	Data   []byte
}
