package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SendMessageRequest is the request to ask the active session a question.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessage appends the text to the active session and streams the reply
// to websocket views.
// POST /v1/messages
func (h *Handler) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	sessionID, err := h.service.SubmitAsync(req.Text)
	if err != nil {
		return errorResponse(c, err)
	}
	h.sessionsChanged()

	return c.JSON(http.StatusAccepted, map[string]string{"session_id": sessionID})
}

// ListModels lists the models the backend advertises.
// GET /v1/models
func (h *Handler) ListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"models":  h.service.ListModels(c.Request().Context()),
		"current": h.service.Model(),
	})
}
