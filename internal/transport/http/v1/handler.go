// Package v1 provides the REST handlers for sessions, messages and models.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/helia/internal/domain"
	"github.com/xiaot623/helia/internal/service"
)

// SessionNotifier is told when the session list changes so live views can
// re-render.
type SessionNotifier interface {
	BroadcastSessions()
}

// Handler handles HTTP requests.
type Handler struct {
	service  *service.Service
	notifier SessionNotifier
}

// NewHandler creates a new handler. notifier may be nil.
func NewHandler(service *service.Service, notifier SessionNotifier) *Handler {
	return &Handler{
		service:  service,
		notifier: notifier,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Sessions
	e.GET("/v1/sessions", h.ListSessions)
	e.POST("/v1/sessions", h.CreateSession)
	e.PUT("/v1/sessions/active", h.SelectSession)
	e.DELETE("/v1/sessions/active", h.DeleteActiveSession)
	e.GET("/v1/sessions/:session_id/messages", h.GetSessionMessages)

	// Chat
	e.POST("/v1/messages", h.SendMessage)
	e.GET("/v1/models", h.ListModels)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"version":   "0.1.0",
		"model":     h.service.Model(),
		"in_flight": h.service.InFlight(),
	})
}

func (h *Handler) sessionsChanged() {
	if h.notifier != nil {
		h.notifier.BroadcastSessions()
	}
}

// errorResponse maps service errors to status codes.
func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyMessage):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNoActiveSession):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
