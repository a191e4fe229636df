package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/lipi/internal/queue"
	"github.com/MeKo-Tech/lipi/internal/server"
	"github.com/MeKo-Tech/lipi/internal/store"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server for transcription and document storage.

Endpoints:
  GET    /health           health and version
  GET    /languages        supported page languages
  POST   /ocr              transcribe an uploaded image
  POST   /ocr/pdf          transcribe an uploaded PDF
  GET    /documents        list stored documents
  POST   /documents        store an image and queue its transcription
  GET    /documents/{id}   one document with its transcript
  DELETE /documents/{id}   delete a document
  GET    /ws/ocr           streaming transcription over WebSocket
  GET    /metrics          Prometheus metrics

Without redis.url uploads to /documents are transcribed before the response
is sent. With it they are queued for "lipi worker", or for the in-process
worker started by --worker.

Examples:
  lipi serve
  lipi serve --host 0.0.0.0 --port 3000
  LIPI_REDIS_URL=redis://localhost:6379/0 lipi serve --worker`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, []flagBinding{
			{"server.host", "host"},
			{"server.port", "port"},
			{"server.cors_origin", "cors-origin"},
			{"server.max_upload_mb", "max-upload-size"},
			{"server.timeout_sec", "timeout"},
			{"server.shutdown_timeout", "shutdown-timeout"},
			{"server.default_language", "language"},
			{"server.rate_limit.requests_per_minute", "requests-per-minute"},
			{"server.rate_limit.requests_per_hour", "requests-per-hour"},
			{"server.rate_limit.requests_per_day", "requests-per-day"},
			{"server.rate_limit.data_per_day_mb", "data-per-day-mb"},
		})
	},
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newServices(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer svc.close()

	docs, err := openDocuments(ctx, cfg)
	if err != nil {
		return err
	}
	svc.onClose(docs.Close)
	blobs, err := store.NewFileBlobStore(cfg.Storage.Dir)
	if err != nil {
		return err
	}

	deps := server.Deps{
		Pipeline:  svc.pipeline,
		Documents: docs,
		Blobs:     blobs,
		Limiter:   server.NewLimiter(cfg.ToRateLimits(), svc.redis),
	}

	withWorker, _ := cmd.Flags().GetBool("worker")
	workerErr := make(chan error, 1)
	if svc.redis != nil {
		client, err := queue.NewClient(cfg.ToQueueConfig())
		if err != nil {
			return err
		}
		svc.onClose(client.Close)
		deps.Jobs = client

		if withWorker {
			processor := queue.NewProcessor(docs, blobs, svc.pipeline, time.Duration(cfg.Queue.TimeoutSec)*time.Second)
			w, err := queue.NewWorker(cfg.ToQueueConfig(), processor)
			if err != nil {
				return err
			}
			go func() { workerErr <- w.Run(ctx) }()
		} else if cfg.Database.DSN == "" {
			slog.Warn("Documents are queued but kept in memory; a separate worker cannot see them, use --worker")
		}
	} else if withWorker {
		slog.Warn("--worker has no effect without redis.url, documents are processed inline")
	}

	ocrServer, err := server.New(cfg.ToServerConfig(), deps)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           ocrServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting OCR server", "host", cfg.Server.Host, "port", cfg.Server.Port,
			"languages", svc.pipeline.Languages(), "queue", svc.redis != nil)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case err := <-workerErr:
		if err != nil {
			slog.Error("In-process worker stopped", "error", err)
		}
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	stop()
	if withWorker && svc.redis != nil {
		select {
		case <-workerErr:
		case <-shutdownCtx.Done():
		}
	}
	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().String("language", "english", "language used when a request names none")
	serveCmd.Flags().Bool("worker", false, "also run the queue worker in this process")
	serveCmd.Flags().Int("requests-per-minute", 0, "uploads per minute per client (0 = unlimited)")
	serveCmd.Flags().Int("requests-per-hour", 0, "uploads per hour per client (0 = unlimited)")
	serveCmd.Flags().Int("requests-per-day", 0, "uploads per day per client (0 = unlimited)")
	serveCmd.Flags().Int64("data-per-day-mb", 0, "upload volume per day per client in MB (0 = unlimited)")
}
