package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/lipi/internal/queue"
	"github.com/MeKo-Tech/lipi/internal/store"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued documents",
	Long: `Consume OCR jobs queued by "lipi serve" and store the transcripts.

The worker needs the same redis.url, database.dsn and storage.dir as the
server.

Examples:
  lipi worker
  lipi worker --concurrency 4`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, []flagBinding{
			{"queue.concurrency", "concurrency"},
			{"queue.name", "queue"},
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if cfg.Database.DSN == "" {
			return errNoDatabase
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

		processor := queue.NewProcessor(docs, blobs, svc.pipeline, time.Duration(cfg.Queue.TimeoutSec)*time.Second)
		w, err := queue.NewWorker(cfg.ToQueueConfig(), processor)
		if err != nil {
			return err
		}
		slog.Info("Starting OCR worker", "queue", cfg.Queue.Name, "concurrency", cfg.Queue.Concurrency)
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().Int("concurrency", 2, "documents processed in parallel")
	workerCmd.Flags().String("queue", "ocr", "queue name")
}
