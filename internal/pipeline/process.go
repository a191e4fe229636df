package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/lipi/internal/geometry"
	"github.com/MeKo-Tech/lipi/internal/recognizer"
	"github.com/MeKo-Tech/lipi/internal/region"
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/sequence"
	"github.com/MeKo-Tech/lipi/internal/utils"
)

// Run processes one uploaded image in the given language using the
// pipeline's default progress callback.
func (p *Pipeline) Run(ctx context.Context, data []byte, lang script.Language) (*Result, error) {
	return p.RunWithProgress(ctx, data, lang, p.progress)
}

// RunWithProgress is Run with a per-call progress callback that receives
// one update per region.
//
// The returned error is non-nil for fatal outcomes (unsupported language,
// ErrImageDecode, ErrDetection), context cancellation and
// ErrRecognizerUnavailable. Other region level problems are recorded on
// the result and never abort the run.
func (p *Pipeline) RunWithProgress(ctx context.Context, data []byte, lang script.Language, cb ProgressCallback) (*Result, error) {
	if cb == nil {
		cb = NoOpProgressCallback{}
	}
	start := time.Now()

	profile, err := p.cfg.Scripts.Lookup(lang)
	if err != nil {
		return nil, err
	}

	img, meta, err := utils.DecodeImage(data)
	if err != nil {
		slog.Error("Failed to decode image", "language", string(profile.Language), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrImageDecode, err)
	}
	slog.Debug("Starting image processing",
		"language", string(profile.Language),
		"format", meta.Format,
		"width", meta.Width,
		"height", meta.Height)

	res := &Result{
		Language: profile.Language,
		Status:   StatusNoText,
		Lines:    []string{},
		Regions:  []RegionResult{},
		Width:    meta.Width,
		Height:   meta.Height,
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	detStart := time.Now()
	preds, failed, err := p.detector.Detect(ctx, data, profile)
	res.Processing.DetectionNs = time.Since(detStart).Nanoseconds()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}
	for _, f := range failed {
		res.Regions = append(res.Regions, RegionResult{
			Index: f.Index, Line: -1, Skipped: true, Reason: f.Err.Error(),
		})
	}
	slog.Debug("Text detection completed",
		"language", string(profile.Language),
		"regions_found", len(preds),
		"duration_ms", res.Processing.DetectionNs/1000000)

	if len(preds) == 0 {
		slog.Info("No text regions detected", "language", string(profile.Language))
		res.Processing.TotalNs = time.Since(start).Nanoseconds()
		return res, nil
	}

	plan := sequence.Order(preds, profile.Sequencing, profile.LineThreshold)
	res.DetectorOrder = plan.Fallback

	recStart := time.Now()
	lines, err := p.recognizeAll(ctx, img, profile, plan, res, cb)
	res.Processing.RecognitionNs = time.Since(recStart).Nanoseconds()
	if err != nil {
		return nil, err
	}

	for _, words := range lines {
		if len(words) > 0 {
			res.Lines = append(res.Lines, profile.Join([][]string{words}))
		}
	}
	res.Text = profile.Join(lines)
	if res.Text != "" {
		res.Status = StatusComplete
	}
	res.Processing.TotalNs = time.Since(start).Nanoseconds()

	slog.Info("Image processing completed",
		"language", string(profile.Language),
		"status", string(res.Status),
		"regions", plan.Len(),
		"lines", len(res.Lines),
		"duration_ms", res.Processing.TotalNs/1000000)
	return res, nil
}

// recognizeAll walks the plan strictly in reading order and returns the
// recognized words per line.
func (p *Pipeline) recognizeAll(ctx context.Context, img image.Image, profile script.Profile,
	plan sequence.Plan, res *Result, cb ProgressCallback,
) ([][]string, error) {
	total := plan.Len()
	cb.OnStart(total)
	done, attempted, unavailable := 0, 0, 0
	var cause error
	lines := make([][]string, 0, len(plan.Lines))
	for li, line := range plan.Lines {
		words := make([]string, 0, len(line))
		for _, pred := range line {
			if err := ctx.Err(); err != nil {
				cb.OnError(done, err)
				return nil, err
			}
			rr, recErr := p.processRegion(ctx, img, profile, pred, li)
			res.Regions = append(res.Regions, rr)
			if !rr.Skipped {
				attempted++
			}
			if errors.Is(recErr, recognizer.ErrModelUnavailable) {
				unavailable++
				cause = recErr
			}
			if rr.Text != "" {
				words = append(words, rr.Text)
			}
			done++
			cb.OnProgress(done, total)
		}
		lines = append(lines, words)
	}
	if attempted > 0 && unavailable == attempted {
		err := fmt.Errorf("%w: %w", ErrRecognizerUnavailable, cause)
		cb.OnError(done, err)
		slog.Error("No region could be recognized", "language", string(profile.Language), "error", cause)
		return nil, err
	}
	cb.OnComplete()
	return lines, nil
}

// processRegion crops and recognizes one prediction. Failures end up in the
// returned RegionResult; the recognition error, if any, is also returned so
// the caller can tell a missing model from an illegible region.
func (p *Pipeline) processRegion(ctx context.Context, img image.Image, profile script.Profile,
	pred region.Prediction, line int,
) (RegionResult, error) {
	rr := RegionResult{Index: pred.Index, Line: line, Shape: pred.Shape.String()}
	if pred.Shape == region.Polygon {
		rr.Polygon = pred.Points
	}

	b := img.Bounds()
	rect, err := geometry.Derive(pred, b.Dx(), b.Dy(), p.cfg.Padding)
	if err != nil {
		return skipped(rr, profile, err), nil
	}
	rr.Box = Box{X: rect.Min.X, Y: rect.Min.Y, W: rect.Dx(), H: rect.Dy()}

	crop, err := geometry.Extract(img, pred, rect, profile.Mask)
	if err != nil {
		return skipped(rr, profile, err), nil
	}

	text, err := p.recognizer.Recognize(ctx, profile.Language, crop)
	if err != nil {
		rr.Reason = err.Error()
		slog.Warn("Recognition failed", "language", string(profile.Language), "region", pred.Index, "error", err)
		return rr, err
	}
	if text == "" {
		rr.Reason = "no text recognized"
		slog.Debug("Region produced no text", "language", string(profile.Language), "region", pred.Index)
		return rr, nil
	}
	rr.Text = text
	slog.Debug("Region recognized", "language", string(profile.Language), "region", pred.Index, "text", text)
	return rr, nil
}

func skipped(rr RegionResult, profile script.Profile, err error) RegionResult {
	rr.Skipped = true
	rr.Reason = err.Error()
	level := slog.LevelWarn
	if !errors.Is(err, geometry.ErrSkip) {
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, "Skipping region",
		"language", string(profile.Language), "region", rr.Index, "error", err)
	return rr
}
