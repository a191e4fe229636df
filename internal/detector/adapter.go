// Package detector invokes the external text-region detection service and
// converts its response into tagged region predictions.
package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/lipi/internal/region"
	"github.com/MeKo-Tech/lipi/internal/script"
)

// ErrCritical marks a detector call that failed outright. It is distinct
// from a successful call that found no regions.
var ErrCritical = errors.New("detector critical failure")

// Detector is what the pipeline needs from a detection backend.
type Detector interface {
	Detect(ctx context.Context, image []byte, profile script.Profile) ([]region.Prediction, []region.Failure, error)
}

// response keeps items untyped so one malformed prediction fails on its own
// instead of failing the whole decode.
type response struct {
	Predictions []any `json:"predictions"`
}

// Adapter persists the image to a transient file, calls the Transport with
// the script's model id and parses the predictions.
type Adapter struct {
	transport Transport
	cache     Cache
	tempDir   string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCache enables response caching.
func WithCache(c Cache) Option { return func(a *Adapter) { a.cache = c } }

// WithTempDir sets the directory for transient detection images.
func WithTempDir(dir string) Option { return func(a *Adapter) { a.tempDir = dir } }

// NewAdapter creates an adapter around t.
func NewAdapter(t Transport, opts ...Option) *Adapter {
	a := &Adapter{transport: t}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Detect returns the parsed predictions in detector order plus the records
// that could not be parsed. An empty slice with a nil error means no regions.
func (a *Adapter) Detect(ctx context.Context, image []byte, profile script.Profile) ([]region.Prediction, []region.Failure, error) {
	if a == nil || a.transport == nil {
		return nil, nil, fmt.Errorf("%w: no transport configured", ErrCritical)
	}
	start := time.Now()
	var resp response
	body, cached := a.lookup(ctx, image, profile.DetectorModelID)
	if cached {
		if err := json.Unmarshal(body, &resp); err != nil {
			slog.Warn("Ignoring undecodable cached detection", "language", string(profile.Language),
				"model", profile.DetectorModelID, "error", err)
			cached, resp = false, response{}
		}
	}
	if !cached {
		var err error
		body, err = a.infer(ctx, image, profile.DetectorModelID)
		if err != nil {
			slog.Error("Detection failed", "language", string(profile.Language),
				"model", profile.DetectorModelID, "error", err)
			return nil, nil, fmt.Errorf("%w: %w", ErrCritical, err)
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, nil, fmt.Errorf("%w: decode response: %w", ErrCritical, err)
		}
		a.store(ctx, image, profile.DetectorModelID, body)
	}

	preds, failed := region.ParseAll(resp.Predictions, profile.ShapeOrder)
	for _, f := range failed {
		slog.Warn("Skipping detector record", "language", string(profile.Language),
			"region", f.Index, "error", f.Err)
	}
	slog.Debug("Detection completed",
		"language", string(profile.Language),
		"regions_found", len(preds),
		"cached", cached,
		"duration_ms", time.Since(start).Milliseconds())
	return preds, failed, nil
}

// infer writes the transient file and always removes it before returning.
func (a *Adapter) infer(ctx context.Context, image []byte, modelID string) ([]byte, error) {
	f, err := os.CreateTemp(a.tempDir, "lipi-detect-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Warn("Failed to remove temp detection image", "path", path, "error", rmErr)
		}
	}()
	if _, err := f.Write(image); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp image: %w", err)
	}
	return a.transport.Infer(ctx, path, modelID)
}

func (a *Adapter) lookup(ctx context.Context, image []byte, modelID string) ([]byte, bool) {
	if a.cache == nil {
		return nil, false
	}
	b, ok, err := a.cache.Get(ctx, CacheKey(image, modelID))
	if err != nil {
		slog.Warn("Detector cache lookup failed", "error", err)
		return nil, false
	}
	return b, ok
}

func (a *Adapter) store(ctx context.Context, image []byte, modelID string, body []byte) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Set(ctx, CacheKey(image, modelID), body); err != nil {
		slog.Warn("Detector cache store failed", "error", err)
	}
}
