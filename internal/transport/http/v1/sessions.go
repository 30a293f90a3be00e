package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/helia/internal/domain"
)

// SelectSessionRequest is the request to switch the active session.
type SelectSessionRequest struct {
	SessionID string `json:"session_id"`
}

// ListSessionsResponse lists sessions in creation order.
type ListSessionsResponse struct {
	Sessions []domain.SessionSummary `json:"sessions"`
	ActiveID string                  `json:"active_id"`
}

// ListSessions lists every session and the active id.
// GET /v1/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	sessions := h.service.Sessions()
	resp := ListSessionsResponse{
		Sessions: make([]domain.SessionSummary, len(sessions)),
		ActiveID: h.service.ActiveID(),
	}
	for i, s := range sessions {
		resp.Sessions[i] = s.Summary()
	}
	return c.JSON(http.StatusOK, resp)
}

// CreateSession creates a session and makes it active.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	sess := h.service.NewSession(c.Request().Context())
	h.sessionsChanged()
	return c.JSON(http.StatusCreated, sess.Summary())
}

// SelectSession switches the active session.
// PUT /v1/sessions/active
func (h *Handler) SelectSession(c echo.Context) error {
	var req SelectSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "session_id is required"})
	}

	if err := h.service.SelectSession(c.Request().Context(), req.SessionID); err != nil {
		return errorResponse(c, err)
	}
	h.sessionsChanged()
	return c.JSON(http.StatusOK, map[string]string{"active_id": h.service.ActiveID()})
}

// DeleteActiveSession deletes the active session.
// DELETE /v1/sessions/active
func (h *Handler) DeleteActiveSession(c echo.Context) error {
	deleted, err := h.service.DeleteActive(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	h.sessionsChanged()
	return c.JSON(http.StatusOK, map[string]string{
		"deleted_id": deleted,
		"active_id":  h.service.ActiveID(),
	})
}

// GetSessionMessages returns a session's history.
// GET /v1/sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	sessionID := c.Param("session_id")

	messages, err := h.service.Messages(sessionID)
	if err != nil {
		return errorResponse(c, err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"messages":   messages,
	})
}
