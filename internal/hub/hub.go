// Package hub fans reply notifications out to connected WebSocket views.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xiaot623/helia/internal/domain"
)

// Event types pushed to views.
const (
	TypeDelta    = "delta"
	TypeDone     = "done"
	TypeSessions = "sessions"
	TypeError    = "error"
)

// Event is a reply notification as a view receives it.
type Event struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

// Connection represents a single WebSocket connection.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	mu   sync.Mutex
}

// Hub manages all WebSocket connections and implements the service observer.
type Hub struct {
	connections map[string]*Connection

	broadcast chan []byte
	done      chan struct{}
	closed    bool

	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		connections: make(map[string]*Connection),
		broadcast:   make(chan []byte, 256),
		done:        make(chan struct{}),
		logger:      logger.Named("hub"),
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, closing
// every connection's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, conn := range h.connections {
			close(conn.Send)
			delete(h.connections, id)
		}
		h.closed = true
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case data := <-h.broadcast:
			h.mu.RLock()
			var slow []*Connection
			for id, conn := range h.connections {
				select {
				case conn.Send <- data:
				default:
					h.logger.Warn("connection buffer full, closing", zap.String("conn_id", id))
					slow = append(slow, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range slow {
				h.drop(conn)
			}
		}
	}
}

func (h *Hub) drop(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; ok {
		delete(h.connections, conn.ID)
		close(conn.Send)
	}
}

// NewConnection wraps ws in a Connection. Register it to receive events.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, 256),
	}
}

// Register registers a connection with the hub. It reports false once the
// hub has stopped.
func (h *Hub) Register(conn *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.connections[conn.ID] = conn
	h.logger.Debug("connection registered", zap.String("conn_id", conn.ID))
	return true
}

// Unregister unregisters a connection from the hub and closes its send channel.
func (h *Hub) Unregister(conn *Connection) {
	h.drop(conn)
	h.logger.Debug("connection unregistered", zap.String("conn_id", conn.ID))
}

// Notify publishes a reply notification to every view.
func (h *Hub) Notify(n domain.Notification) {
	eventType := TypeDelta
	if !n.Streaming {
		eventType = TypeDone
	}
	if err := h.BroadcastJSON(Event{
		Type:      eventType,
		Ts:        time.Now().UnixMilli(),
		SessionID: n.SessionID,
		Text:      n.Text,
	}); err != nil {
		h.logger.Error("failed to broadcast notification", zap.Error(err))
	}
}

// Broadcast sends data to every connection.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// BroadcastJSON sends a JSON message to every connection.
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// SendToConnection sends a message to a specific connection.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return ErrNotRegistered
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

var (
	// ErrBufferFull is returned when the send buffer is full.
	ErrBufferFull = errors.New("send buffer full")
	// ErrNotRegistered is returned when sending to a connection the hub no longer tracks.
	ErrNotRegistered = errors.New("connection not registered")
)
