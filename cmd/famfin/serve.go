package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/famfin/internal/backup"
	"github.com/dukerupert/famfin/internal/database"
	"github.com/dukerupert/famfin/internal/server"
)

const cleanupInterval = 15 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := slog.Default()

		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		srv := server.New(db, cfg, logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if d := srv.PushDispatcher(); d != nil {
			d.Start(ctx)
			defer d.Stop()
		} else {
			logger.Info("web push disabled, no VAPID keys configured")
		}

		backups := backup.NewManager(cfg.Backup, db, logger.With("component", "backup"))
		startScheduledBackups(ctx, cfg, backups, logger)
		defer backups.Stop()

		go runCleanup(ctx, srv, logger)

		// No Read/WriteTimeout: /ws connections are long-lived and the
		// client write pump applies its own per-write deadline.
		httpServer := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("famfin running", "addr", httpServer.Addr, "base_url", cfg.BaseURL, "version", Version)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	},
}

// runCleanup periodically removes expired sessions and stale rate-limit entries.
func runCleanup(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := srv.SessionStore().DeleteExpired()
			if err != nil {
				logger.Error("delete expired sessions", "error", err)
			} else if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
			srv.RateLimiter().Cleanup()
		}
	}
}
