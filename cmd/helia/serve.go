package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/helia/internal/adapter/ollama"
	"github.com/xiaot623/helia/internal/hub"
	store "github.com/xiaot623/helia/internal/repository"
	"github.com/xiaot623/helia/internal/service"
	"github.com/xiaot623/helia/internal/session"
	httpserver "github.com/xiaot623/helia/internal/transport/http"
	"github.com/xiaot623/helia/internal/transport/ws"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST and websocket chat API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	logger.Info("starting helia",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("database", cfg.DatabaseURL),
		zap.String("backend", cfg.BaseURL()),
		zap.String("model", cfg.Model))

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	generator := ollama.NewGenerator(cfg, logger)
	h := hub.NewHub(logger)

	svc := service.New(session.NewStore(), generator, db, h, cfg.Model, logger)
	if err := svc.Load(ctx); err != nil {
		return err
	}

	wsServer := ws.NewServer(cfg, h, svc, logger)
	e := httpserver.NewServer(svc, wsServer, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.Run(gctx)
		return nil
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("http server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", zap.Error(err))
		}

		// Websocket connections outlive Shutdown; their asks fail with
		// ErrClosed from here on.
		svc.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("helia stopped")
	return nil
}
