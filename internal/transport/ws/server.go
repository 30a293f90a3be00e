// Package ws serves the WebSocket view of the chat sessions.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/helia/internal/config"
	"github.com/xiaot623/helia/internal/domain"
	"github.com/xiaot623/helia/internal/hub"
	"github.com/xiaot623/helia/internal/service"
)

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	service  *service.Service
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, svc *service.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		hub:     h,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.Named("ws"),
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return err
	}

	conn := s.hub.NewConnection(ws)
	if !s.hub.Register(conn) {
		ws.Close()
		return nil
	}

	ws.SetReadLimit(s.cfg.WSMaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	// The view renders from the current list straight away.
	s.sendSessions(conn)
	return nil
}

// readPump reads commands from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout()))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout()))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error", zap.String("conn_id", conn.ID), zap.Error(err))
			}
			return
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes queued events to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval())
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout()))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Warn("failed to write message", zap.String("conn_id", conn.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout()))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming commands.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	ctx := context.Background()
	switch cmd.Type {
	case TypeAsk:
		if _, err := s.service.SubmitAsync(cmd.Text); err != nil {
			s.sendServiceError(conn, err)
			return
		}
		// The user message is already in the history.
		s.broadcastSessions()

	case TypeNewSession:
		s.service.NewSession(ctx)
		s.broadcastSessions()

	case TypeSelectSession:
		if cmd.SessionID == "" {
			s.sendError(conn, ErrorCodeInvalidMessage, "session_id is required")
			return
		}
		if err := s.service.SelectSession(ctx, cmd.SessionID); err != nil {
			s.sendServiceError(conn, err)
			return
		}
		s.broadcastSessions()

	case TypeDeleteSession:
		if _, err := s.service.DeleteActive(ctx); err != nil {
			s.sendServiceError(conn, err)
			return
		}
		s.broadcastSessions()

	case TypeListSessions:
		s.sendSessions(conn)

	default:
		s.sendError(conn, ErrorCodeInvalidMessage, "unknown message type: "+cmd.Type)
	}
}

func (s *Server) sessionsMessage() SessionsMessage {
	sessions := s.service.Sessions()
	activeID := s.service.ActiveID()

	msg := SessionsMessage{
		Type:     hub.TypeSessions,
		Ts:       time.Now().UnixMilli(),
		ActiveID: activeID,
		Sessions: make([]domain.SessionSummary, 0, len(sessions)),
		History:  []domain.Message{},
	}
	for _, sess := range sessions {
		msg.Sessions = append(msg.Sessions, sess.Summary())
		if sess.ID == activeID {
			msg.History = sess.History
		}
	}
	return msg
}

// sendSessions sends the session list to a single connection.
func (s *Server) sendSessions(conn *hub.Connection) {
	if err := s.hub.SendJSONToConnection(conn, s.sessionsMessage()); err != nil {
		s.logger.Debug("failed to send sessions", zap.String("conn_id", conn.ID), zap.Error(err))
	}
}

// broadcastSessions pushes the session list to every view.
func (s *Server) broadcastSessions() {
	if err := s.hub.BroadcastJSON(s.sessionsMessage()); err != nil {
		s.logger.Error("failed to broadcast sessions", zap.Error(err))
	}
}

// BroadcastSessions pushes the session list to every view. Other command
// layers call it after changing sessions.
func (s *Server) BroadcastSessions() {
	s.broadcastSessions()
}

func (s *Server) sendServiceError(conn *hub.Connection, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		s.sendError(conn, ErrorCodeEmptyMessage, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		s.sendError(conn, ErrorCodeNotFound, err.Error())
	case errors.Is(err, domain.ErrNoActiveSession):
		s.sendError(conn, ErrorCodeNoActiveSession, err.Error())
	default:
		s.logger.Error("command failed", zap.String("conn_id", conn.ID), zap.Error(err))
		s.sendError(conn, ErrorCodeInternal, err.Error())
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *hub.Connection, code, message string) {
	errMsg := ErrorMessage{
		Type:    hub.TypeError,
		Ts:      time.Now().UnixMilli(),
		Code:    code,
		Message: message,
	}
	if err := s.hub.SendJSONToConnection(conn, errMsg); err != nil {
		s.logger.Debug("failed to send error", zap.String("conn_id", conn.ID), zap.Error(err))
	}
}
