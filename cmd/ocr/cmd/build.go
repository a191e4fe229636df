package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/lipi/internal/config"
	"github.com/MeKo-Tech/lipi/internal/detector"
	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/MeKo-Tech/lipi/internal/recognizer"
	"github.com/MeKo-Tech/lipi/internal/store"
	"github.com/redis/go-redis/v9"
)

// services holds what the long-running commands share. close releases
// everything in reverse order of creation.
type services struct {
	redis    redis.UniversalClient
	pipeline *pipeline.Pipeline
	closers  []func() error
}

func (s *services) onClose(f func() error) { s.closers = append(s.closers, f) }

func (s *services) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("Cleanup failed", "error", err)
		}
	}
	s.closers = nil
}

// openRedis connects to cfg.Redis.URL. No URL means no client and no error.
func openRedis(ctx context.Context, cfg *config.Config) (redis.UniversalClient, error) {
	if cfg.Redis.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// newServices connects redis when configured and builds the OCR pipeline.
func newServices(ctx context.Context, cfg *config.Config, progress pipeline.ProgressCallback) (*services, error) {
	s := &services{}
	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		s.redis = rdb
		s.onClose(rdb.Close)
	}

	p, err := buildPipeline(cfg, s.redis, progress)
	if err != nil {
		s.close()
		return nil, err
	}
	s.pipeline = p
	s.onClose(p.Close)
	return s, nil
}

// buildPipeline wires the hosted detector, its optional prediction cache and
// the configured recognition backend into a pipeline.
func buildPipeline(cfg *config.Config, rdb redis.UniversalClient, progress pipeline.ProgressCallback) (*pipeline.Pipeline, error) {
	pCfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return nil, err
	}

	transport, err := detector.NewRoboflowClient(cfg.ToDetectorConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create detector client: %w", err)
	}
	opts := []detector.Option{detector.WithTempDir(cfg.Detector.TempDir)}
	if cfg.Detector.CacheEnabled && rdb != nil {
		ttl := time.Duration(cfg.Detector.CacheTTL) * time.Second
		opts = append(opts, detector.WithCache(detector.NewRedisCache(rdb, ttl)))
		slog.Debug("Detector prediction cache enabled", "ttl", ttl)
	}

	loader, err := recognizer.NewLoader(cfg.ToRecognizerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}

	b := pipeline.NewBuilder().
		WithConfig(pCfg).
		WithDetector(detector.NewAdapter(transport, opts...)).
		WithRecognizer(recognizer.NewRegistry(loader))
	if progress != nil {
		b = b.WithProgress(progress)
	}
	p, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	slog.Debug("Pipeline ready", "backend", cfg.Recognizer.Backend, "languages", p.Languages())
	return p, nil
}

// openDocuments returns the PostgreSQL store when a DSN is configured and
// an in-memory store otherwise.
func openDocuments(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	if cfg.Database.DSN == "" {
		slog.Info("No database configured, documents are kept in memory")
		return store.NewMemoryStore(), nil
	}
	pg, err := store.OpenPostgres(ctx, cfg.ToPostgresConfig())
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}
	return pg, nil
}

var errNoDatabase = errors.New("database.dsn is required so the worker shares documents with the server")
