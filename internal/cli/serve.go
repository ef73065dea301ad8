package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/wanderlust/internal/auth"
	"github.com/evcraddock/wanderlust/internal/config"
	"github.com/evcraddock/wanderlust/internal/logging"
	"github.com/evcraddock/wanderlust/internal/storage"
	"github.com/evcraddock/wanderlust/internal/web"
)

const (
	sessionCleanupInterval = time.Hour
	shutdownTimeout        = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long:  "Start the HTTP server for the listings web UI. Stops gracefully on SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (overrides config)")

	return cmd
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Setup(os.Stdout, cfg.Server.DevMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(database)

	geocoder, closeGeocoder, err := newGeocoder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeGeocoder()

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		return err
	}

	srv, err := web.NewServer(database, web.Config{
		Session: auth.SessionConfig{
			Secret:     []byte(cfg.Session.Secret),
			TTL:        cfg.Session.TTL,
			TouchAfter: cfg.Session.TouchAfter,
			Secure:     cfg.Session.SecureCookie,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, geocoder, images)
	if err != nil {
		return err
	}

	go srv.Sessions().RunCleanup(ctx, sessionCleanupInterval)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", httpServer.Addr, "base_url", cfg.Server.BaseURL, "dev_mode", cfg.Server.DevMode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving HTTP: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// newImageStore returns the S3 store, or nil when no bucket is configured.
func newImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, error) {
	if cfg.Storage.Bucket == "" {
		slog.Warn("no storage bucket configured, image uploads are disabled")
		return nil, nil
	}
	store, err := storage.NewS3Store(ctx, storage.Config{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		Prefix:          cfg.Storage.Prefix,
		PublicURL:       cfg.Storage.PublicURL,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
