// Package http provides the HTTP server for the chat command layer.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/xiaot623/helia/internal/service"
	v1 "github.com/xiaot623/helia/internal/transport/http/v1"
	"github.com/xiaot623/helia/internal/transport/ws"
)

// NewServer creates and configures the HTTP server. wsServer may be nil, in
// which case /ws is not served.
func NewServer(svc *service.Service, wsServer *ws.Server, logger *zap.Logger) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	var notifier v1.SessionNotifier
	if wsServer != nil {
		notifier = wsServer
		e.GET("/ws", wsServer.HandleWebSocket)
	}
	v1.NewHandler(svc, notifier).RegisterRoutes(e)

	return e
}
