// Package queue runs OCR for stored documents in the background on asynq.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/lipi/internal/store"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeOCR is the task type for processing one stored document.
const TypeOCR = "ocr:process"

// Payload is the body of an ocr:process task.
type Payload struct {
	DocumentID string `json:"document_id"`
}

// Config holds the redis connection and worker settings.
type Config struct {
	RedisURL    string
	Queue       string
	Concurrency int
	MaxRetry    int
	// Timeout bounds a single document's processing.
	Timeout time.Duration
}

// DefaultConfig returns settings for a local redis.
func DefaultConfig() Config {
	return Config{
		RedisURL:    "redis://localhost:6379/0",
		Queue:       "ocr",
		Concurrency: 2,
		MaxRetry:    3,
		Timeout:     5 * time.Minute,
	}
}

func (c Config) queueName() string {
	if c.Queue == "" {
		return "default"
	}
	return c.Queue
}

// Enqueuer schedules OCR for a stored document.
type Enqueuer interface {
	EnqueueOCR(ctx context.Context, id uuid.UUID) error
}

// NewOCRTask builds the task for document id.
func NewOCRTask(id uuid.UUID, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(Payload{DocumentID: id.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOCR, payload, opts...), nil
}

func parsePayload(t *asynq.Task) (uuid.UUID, error) {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return uuid.Nil, fmt.Errorf("decode payload: %w", err)
	}
	id, err := uuid.Parse(p.DocumentID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("document id %q: %w", p.DocumentID, err)
	}
	return id, nil
}

// Client enqueues tasks on redis.
type Client struct {
	client *asynq.Client
	cfg    Config
}

// NewClient connects to cfg.RedisURL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RedisURL == "" {
		return nil, errors.New("redis url is required")
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Client{client: asynq.NewClient(opt), cfg: cfg}, nil
}

// EnqueueOCR schedules document id for processing.
func (c *Client) EnqueueOCR(ctx context.Context, id uuid.UUID) error {
	opts := []asynq.Option{asynq.Queue(c.cfg.queueName()), asynq.MaxRetry(c.cfg.MaxRetry)}
	if c.cfg.Timeout > 0 {
		opts = append(opts, asynq.Timeout(c.cfg.Timeout))
	}
	task, err := NewOCRTask(id, opts...)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", id, err)
	}
	return nil
}

func (c *Client) Close() error { return c.client.Close() }

// Inline runs the processor synchronously instead of enqueueing. It serves
// single-process deployments without redis.
type Inline struct {
	Processor *Processor
}

func (i Inline) EnqueueOCR(ctx context.Context, id uuid.UUID) error {
	err := i.Processor.Process(ctx, id)
	if errors.Is(err, asynq.SkipRetry) {
		// The document is already marked failed.
		return nil
	}
	if err != nil {
		// Nothing retries an inline run.
		i.Processor.setStatus(ctx, id, store.StatusFailed)
	}
	return err
}
