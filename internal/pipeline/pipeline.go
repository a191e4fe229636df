// Package pipeline composes detection, reading order, cropping and
// recognition into a single OCR run per image.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/MeKo-Tech/lipi/internal/detector"
	"github.com/MeKo-Tech/lipi/internal/geometry"
	"github.com/MeKo-Tech/lipi/internal/script"
)

var (
	// ErrImageDecode is returned when the uploaded bytes are not a decodable image.
	ErrImageDecode = errors.New("image decode failed")
	// ErrDetection is returned when the detector failed outright.
	ErrDetection = errors.New("text detection failed")
	// ErrRecognizerUnavailable is returned when every region that reached
	// recognition failed because the model could not be loaded. It is not
	// fatal: the load is retried on the next run.
	ErrRecognizerUnavailable = errors.New("recognizer unavailable")
)

// Recognizer returns the text in one region crop. An empty string with a
// nil error means nothing was recognized.
type Recognizer interface {
	Recognize(ctx context.Context, lang script.Language, img image.Image) (string, error)
}

// Config holds configuration for the OCR pipeline.
type Config struct {
	Scripts script.Table
	// Padding is added on every side of a region before clamping.
	Padding int
}

// DefaultConfig returns the built-in script table and padding.
func DefaultConfig() Config {
	return Config{
		Scripts: script.DefaultTable(),
		Padding: geometry.Padding,
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg        Config
	detector   detector.Detector
	recognizer Recognizer
	progress   ProgressCallback
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithScripts sets the script table.
func (b *Builder) WithScripts(t script.Table) *Builder {
	if len(t) > 0 {
		b.cfg.Scripts = t
	}
	return b
}

// WithPadding sets the crop padding in pixels.
func (b *Builder) WithPadding(pad int) *Builder {
	if pad >= 0 {
		b.cfg.Padding = pad
	}
	return b
}

// WithDetector sets the detection backend.
func (b *Builder) WithDetector(d detector.Detector) *Builder {
	b.detector = d
	return b
}

// WithRecognizer sets the recognition backend.
func (b *Builder) WithRecognizer(r Recognizer) *Builder {
	b.recognizer = r
	return b
}

// WithProgress sets the default progress callback used by Run.
func (b *Builder) WithProgress(cb ProgressCallback) *Builder {
	b.progress = cb
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the builder can produce a working pipeline.
func (b *Builder) Validate() error {
	if b.detector == nil {
		return errors.New("detector is not configured")
	}
	if b.recognizer == nil {
		return errors.New("recognizer is not configured")
	}
	if b.cfg.Padding < 0 {
		return fmt.Errorf("padding must be non-negative, got %d", b.cfg.Padding)
	}
	if err := b.cfg.Scripts.Validate(); err != nil {
		return fmt.Errorf("scripts: %w", err)
	}
	return nil
}

// Pipeline runs OCR over single images. It is safe for concurrent use as
// long as its detector and recognizer are.
type Pipeline struct {
	cfg        Config
	detector   detector.Detector
	recognizer Recognizer
	progress   ProgressCallback
}

// Build validates the configuration and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	progress := b.progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	return &Pipeline{
		cfg:        b.cfg,
		detector:   b.detector,
		recognizer: b.recognizer,
		progress:   progress,
	}, nil
}

// Close releases the recognizer's models when it owns any.
func (p *Pipeline) Close() error {
	if c, ok := p.recognizer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Languages lists the languages this pipeline accepts.
func (p *Pipeline) Languages() []script.Language { return p.cfg.Scripts.Languages() }

// Info returns a map with key pipeline properties.
func (p *Pipeline) Info() map[string]any {
	scripts := make(map[string]any, len(p.cfg.Scripts))
	for _, lang := range p.cfg.Scripts.Languages() {
		prof := p.cfg.Scripts[lang]
		scripts[string(lang)] = map[string]any{
			"detector_model": prof.DetectorModelID,
			"sequencing":     string(prof.Sequencing),
			"line_threshold": prof.LineThreshold,
			"mask":           prof.Mask,
		}
	}
	return map[string]any{
		"padding": p.cfg.Padding,
		"scripts": scripts,
	}
}
