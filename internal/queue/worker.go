package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/store"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// OCR is the pipeline surface the processor needs.
type OCR interface {
	RunWithProgress(ctx context.Context, data []byte, lang script.Language, cb pipeline.ProgressCallback) (*pipeline.Result, error)
}

// Processor turns a stored document into a transcript.
type Processor struct {
	docs    store.Repository
	blobs   store.BlobStore
	ocr     OCR
	logger  *slog.Logger
	timeout time.Duration
}

// NewProcessor wires the processor. timeout <= 0 means no limit beyond ctx.
func NewProcessor(docs store.Repository, blobs store.BlobStore, ocr OCR, timeout time.Duration) *Processor {
	return &Processor{docs: docs, blobs: blobs, ocr: ocr, logger: slog.Default(), timeout: timeout}
}

// Process runs OCR for document id. Outcomes that a retry cannot change
// mark the document ocr_failed and wrap asynq.SkipRetry. Other failures
// (store, blob, an unavailable recognizer) put a claimed document back to
// pending and are returned as is so the task is retried.
func (p *Processor) Process(ctx context.Context, id uuid.UUID) error {
	claimed, err := p.process(ctx, id)
	if err != nil && claimed && !errors.Is(err, asynq.SkipRetry) {
		p.setStatus(ctx, id, store.StatusPending)
	}
	return err
}

func (p *Processor) process(ctx context.Context, id uuid.UUID) (claimed bool, err error) {
	start := time.Now()
	logger := p.logger.With("document", id.String())

	doc, err := p.docs.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("document %s: %w: %w", id, err, asynq.SkipRetry)
	}
	if err != nil {
		return false, fmt.Errorf("load document %s: %w", id, err)
	}
	if err := p.docs.UpdateStatus(ctx, id, store.StatusProcessing); err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}

	data, err := p.blobs.Get(ctx, doc.ImageKey)
	if errors.Is(err, store.ErrNotFound) {
		return true, p.fail(ctx, logger, id, fmt.Errorf("image missing: %w", err))
	}
	if err != nil {
		return true, fmt.Errorf("read image: %w", err)
	}

	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	progress := pipeline.NewLogProgressCallback(logger, slog.LevelDebug, 25)
	res, err := p.ocr.RunWithProgress(runCtx, data, doc.Language, progress)
	if pipeline.IsFatal(err) {
		return true, p.fail(ctx, logger, id, err)
	}
	if err != nil {
		logger.Warn("OCR attempt failed, will retry", "error", err)
		return true, fmt.Errorf("ocr %s: %w", id, err)
	}

	if err := p.docs.SaveTranscript(ctx, id, res.Text, store.StatusComplete); err != nil {
		return true, fmt.Errorf("save transcript: %w", err)
	}
	logger.Info("Document processed",
		"status", res.Status,
		"regions", len(res.Regions),
		"duration_ms", time.Since(start).Milliseconds())
	return true, nil
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, id uuid.UUID, cause error) error {
	logger.Error("OCR failed", "error", cause)
	if err := p.docs.UpdateStatus(ctx, id, store.StatusFailed); err != nil {
		return fmt.Errorf("mark failed: %w (after %w)", err, cause)
	}
	return fmt.Errorf("%w: %w", cause, asynq.SkipRetry)
}

// HandleOCRTask is the asynq handler for TypeOCR.
func (p *Processor) HandleOCRTask(ctx context.Context, t *asynq.Task) error {
	id, err := parsePayload(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	err = p.Process(ctx, id)
	if err != nil && !errors.Is(err, asynq.SkipRetry) && lastAttempt(ctx) {
		p.setStatus(ctx, id, store.StatusFailed)
	}
	return err
}

// lastAttempt reports whether asynq will not retry the running task again.
func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return ok && retried >= maxRetry
}

// setStatus is best effort: the caller already carries the error that matters.
func (p *Processor) setStatus(ctx context.Context, id uuid.UUID, status store.Status) {
	if err := p.docs.UpdateStatus(context.WithoutCancel(ctx), id, status); err != nil {
		p.logger.Warn("Failed to update document status",
			"document", id.String(), "status", status, "error", err)
	}
}

// Worker consumes ocr:process tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	cfg    Config
}

// NewWorker connects to redis and registers the processor.
func NewWorker(cfg Config, p *Processor) (*Worker, error) {
	if p == nil {
		return nil, errors.New("processor is required")
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.queueName(): 10, "default": 1},
		Logger:      slogLogger{slog.Default().With("component", "queue")},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return min(time.Duration(5*(1<<uint(n)))*time.Second, time.Minute)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, t *asynq.Task, err error) {
			slog.Warn("Task failed", "type", t.Type(), "payload", string(t.Payload()), "error", err)
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeOCR, p.HandleOCRTask)
	return &Worker{server: srv, mux: mux, cfg: cfg}, nil
}

// Run processes tasks until ctx is done, then shuts down gracefully.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("Starting OCR worker", "queue", w.cfg.queueName(), "concurrency", w.cfg.Concurrency)
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	<-ctx.Done()
	w.server.Shutdown()
	slog.Info("OCR worker stopped")
	return nil
}

// slogLogger adapts slog to asynq.Logger.
type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Debug(args ...any) { s.l.Debug(fmt.Sprint(args...)) }
func (s slogLogger) Info(args ...any)  { s.l.Info(fmt.Sprint(args...)) }
func (s slogLogger) Warn(args ...any)  { s.l.Warn(fmt.Sprint(args...)) }
func (s slogLogger) Error(args ...any) { s.l.Error(fmt.Sprint(args...)) }
func (s slogLogger) Fatal(args ...any) {
	s.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
