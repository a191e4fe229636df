package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/utils"
)

// slot holds the model of one language. mu guards loading, infer
// serializes calls into the model.
type slot struct {
	mu    sync.Mutex
	model Model
	infer sync.Mutex
}

// Registry owns at most one loaded model per language. Models are loaded
// lazily on first use; failed loads are not remembered.
type Registry struct {
	loader Loader
	clean  CleanOptions

	mu     sync.Mutex
	slots  map[script.Language]*slot
	loadMu sync.Mutex
	device Device
}

// NewRegistry creates a registry that loads models through loader.
func NewRegistry(loader Loader) *Registry {
	return &Registry{
		loader: loader,
		clean:  DefaultCleanOptions(),
		slots:  make(map[script.Language]*slot),
	}
}

func (r *Registry) slot(lang script.Language) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[lang]
	if !ok {
		s = &slot{}
		r.slots[lang] = s
	}
	return s
}

// Device returns the pinned compute device, or empty before the first load.
func (r *Registry) Device() Device {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	return r.device
}

// Loaded lists languages with a loaded model.
func (r *Registry) Loaded() []script.Language {
	r.mu.Lock()
	slots := make(map[script.Language]*slot, len(r.slots))
	for k, v := range r.slots {
		slots[k] = v
	}
	r.mu.Unlock()

	var out []script.Language
	for lang, s := range slots {
		s.mu.Lock()
		if s.model != nil {
			out = append(out, lang)
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Ensure loads the model for lang if needed. Concurrent callers for the
// same language wait for a single load.
func (r *Registry) Ensure(ctx context.Context, lang script.Language) error {
	_, _, err := r.ensure(ctx, lang)
	return err
}

func (r *Registry) ensure(ctx context.Context, lang script.Language) (*slot, Model, error) {
	if r.loader == nil {
		return nil, nil, fmt.Errorf("%w: %s: no loader configured", ErrModelUnavailable, lang)
	}
	s := r.slot(lang)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model != nil {
		return s, s.model, nil
	}

	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	start := time.Now()
	m, used, err := r.loader.Load(ctx, lang, r.device)
	if err != nil {
		slog.Error("Failed to load recognition model", "language", string(lang), "error", err)
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrModelUnavailable, lang, err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("%w: %s: loader returned no model", ErrModelUnavailable, lang)
	}
	if r.device == "" {
		if used == "" {
			used = DeviceCPU
		}
		r.device = used
	}
	s.model = m
	slog.Info("Recognition model loaded",
		"language", string(lang),
		"device", string(r.device),
		"duration_ms", time.Since(start).Milliseconds())
	return s, m, nil
}

// Recognize returns the text in img, trimmed and NFC normalized. An empty
// string with a nil error means the model produced no text. A model that
// cannot be loaded yields ErrModelUnavailable; panics anywhere in loading,
// conversion or inference come back as errors.
func (r *Registry) Recognize(ctx context.Context, lang script.Language, img image.Image) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("recognizer panic: %v", p)
		}
	}()
	s, m, err := r.ensure(ctx, lang)
	if err != nil {
		return "", err
	}
	rgb, err := utils.ToRGB(img)
	if err != nil {
		return "", err
	}

	s.infer.Lock()
	defer s.infer.Unlock()
	raw, err := m.Recognize(ctx, rgb)
	if err != nil {
		return "", err
	}
	return PostProcessText(raw, r.clean), nil
}

// Close releases every loaded model. The registry can load again afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	slots := r.slots
	r.slots = make(map[script.Language]*slot)
	r.mu.Unlock()

	var errs []error
	for lang, s := range slots {
		s.mu.Lock()
		s.infer.Lock()
		if s.model != nil {
			if err := s.model.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", lang, err))
			}
			s.model = nil
		}
		s.infer.Unlock()
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}
