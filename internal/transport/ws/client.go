package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/helia/internal/domain"
)

// Frame is any message the server pushes. Only the fields its type carries
// are set.
type Frame struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`

	ActiveID string                  `json:"active_id,omitempty"`
	Sessions []domain.SessionSummary `json:"sessions,omitempty"`
	History  []domain.Message        `json:"history,omitempty"`
}

// Client is a WebSocket client for a running server.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Dial connects to the server at addr, e.g. ws://localhost:8090/ws.
func Dial(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Send writes a command.
func (c *Client) Send(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(cmd)
}

// Read blocks for the next frame.
func (c *Client) Read() (Frame, error) {
	var f Frame
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("unmarshal frame: %w", err)
	}
	return f, nil
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	return c.conn.Close()
}
