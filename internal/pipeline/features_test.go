package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/MeKo-Tech/lipi/internal/detector"
	"github.com/MeKo-Tech/lipi/internal/recognizer"
	"github.com/MeKo-Tech/lipi/internal/region"
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/testutil"
	"github.com/cucumber/godog"
)

// scenario holds the state of one feature scenario.
type scenario struct {
	det    *testutil.Detector
	model  *testutil.ColorModel
	upload []byte
	result *Result
	err    error
}

func newScenario() *scenario {
	return &scenario{
		det: &testutil.Detector{
			Predictions: map[script.Language][]region.Prediction{},
			Failures:    map[script.Language][]region.Failure{},
		},
		model: &testutil.ColorModel{
			Texts:  map[color.RGBA]string{},
			Errors: map[color.RGBA]error{},
		},
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (s *scenario) englishPage(list string) error {
	texts := splitList(list)
	blocks := make([]testutil.Block, len(texts))
	preds := make([]region.Prediction, len(texts))
	for i, text := range texts {
		r := image.Rect(10, 20+40*i, 190, 40+40*i)
		blocks[i] = testutil.Block{Rect: r, Color: testutil.Shade(i)}
		preds[i] = testutil.PolygonPrediction(i, r)
		s.model.Texts[testutil.Shade(i)] = text
	}
	data, err := encodePNG(testutil.Page(200, 40*len(texts)+40, blocks...))
	if err != nil {
		return err
	}
	s.upload = data
	s.det.Predictions[script.English] = preds
	return nil
}

func (s *scenario) englishPageBottomUp(list string) error {
	if err := s.englishPage(list); err != nil {
		return err
	}
	slices.Reverse(s.det.Predictions[script.English])
	return nil
}

func (s *scenario) nepaliPage(table *godog.Table) error {
	if len(table.Rows) < 2 {
		return errors.New("word table needs a header and at least one row")
	}
	var blocks []testutil.Block
	var preds []region.Prediction
	for i, row := range table.Rows[1:] {
		x, err := strconv.Atoi(row.Cells[1].Value)
		if err != nil {
			return fmt.Errorf("row %d: bad x: %w", i, err)
		}
		y, err := strconv.Atoi(row.Cells[2].Value)
		if err != nil {
			return fmt.Errorf("row %d: bad y: %w", i, err)
		}
		r := image.Rect(x, y, x+30, y+10)
		blocks = append(blocks, testutil.Block{Rect: r, Color: testutil.Shade(i)})
		preds = append(preds, testutil.BoxPrediction(i, r))
		s.model.Texts[testutil.Shade(i)] = row.Cells[0].Value
	}
	data, err := encodePNG(testutil.Page(240, 240, blocks...))
	if err != nil {
		return err
	}
	s.upload = data
	s.det.Predictions[script.Nepali] = preds
	return nil
}

func (s *scenario) blankPage() error {
	data, err := encodePNG(testutil.Page(120, 80))
	s.upload = data
	return err
}

func (s *scenario) rawUpload(content string) error {
	s.upload = []byte(content)
	return nil
}

func (s *scenario) detectorUnreachable() error {
	s.det.Err = fmt.Errorf("%w: dial tcp: connection refused", detector.ErrCritical)
	return nil
}

func (s *scenario) recognitionFailsFor(text string) error {
	for c, t := range s.model.Texts {
		if t == text {
			s.model.Errors[c] = errors.New("inference failed")
			return nil
		}
	}
	return fmt.Errorf("no region with text %q", text)
}

func (s *scenario) process(lang string) error {
	p, err := NewBuilder().
		WithDetector(s.det).
		WithRecognizer(recognizer.NewRegistry(s.model.Loader())).
		Build()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()
	s.result, s.err = p.Run(context.Background(), s.upload, script.Language(lang))
	return nil
}

func (s *scenario) statusIs(want string) error {
	if s.err != nil {
		return fmt.Errorf("run failed: %w", s.err)
	}
	if got := string(s.result.Status); got != want {
		return fmt.Errorf("status = %q, want %q", got, want)
	}
	return nil
}

func (s *scenario) transcriptIs(want string) error {
	if s.err != nil {
		return fmt.Errorf("run failed: %w", s.err)
	}
	if s.result.Text != want {
		return fmt.Errorf("transcript = %q, want %q", s.result.Text, want)
	}
	return nil
}

func (s *scenario) transcriptIsDoc(doc *godog.DocString) error {
	return s.transcriptIs(doc.Content)
}

func (s *scenario) runFailsWith(kind string) error {
	target := map[string]error{
		"an image decode error": ErrImageDecode,
		"a detection error":     ErrDetection,
	}[kind]
	if target == nil {
		return fmt.Errorf("unknown failure kind %q", kind)
	}
	if !errors.Is(s.err, target) {
		return fmt.Errorf("error = %v, want %v", s.err, target)
	}
	return nil
}

func (s *scenario) runDidNotFail() error { return s.err }

func (s *scenario) pageHasLines(n int) error {
	if s.err != nil {
		return fmt.Errorf("run failed: %w", s.err)
	}
	if len(s.result.Lines) != n {
		return fmt.Errorf("got %d lines %q, want %d", len(s.result.Lines), s.result.Lines, n)
	}
	return nil
}

// InitializeScenario registers the step definitions.
func InitializeScenario(sc *godog.ScenarioContext) {
	var s *scenario
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		s = newScenario()
		return ctx, nil
	})

	sc.Step(`^an english page with the lines "([^"]*)"$`, func(list string) error { return s.englishPage(list) })
	sc.Step(`^an english page with the lines "([^"]*)" reported bottom up$`, func(list string) error { return s.englishPageBottomUp(list) })
	sc.Step(`^a nepali page with the words:$`, func(t *godog.Table) error { return s.nepaliPage(t) })
	sc.Step(`^a blank page$`, func() error { return s.blankPage() })
	sc.Step(`^the upload "([^"]*)"$`, func(c string) error { return s.rawUpload(c) })
	sc.Step(`^the detector is unreachable$`, func() error { return s.detectorUnreachable() })
	sc.Step(`^recognition fails for "([^"]*)"$`, func(t string) error { return s.recognitionFailsFor(t) })
	sc.Step(`^the page is processed in "([^"]*)"$`, func(l string) error { return s.process(l) })
	sc.Step(`^the status is "([^"]*)"$`, func(w string) error { return s.statusIs(w) })
	sc.Step(`^the transcript is "([^"]*)"$`, func(w string) error { return s.transcriptIs(w) })
	sc.Step(`^the transcript is:$`, func(d *godog.DocString) error { return s.transcriptIsDoc(d) })
	sc.Step(`^the run fails with (an image decode error|a detection error)$`, func(k string) error { return s.runFailsWith(k) })
	sc.Step(`^the run did not fail$`, func() error { return s.runDidNotFail() })
	sc.Step(`^the page has (\d+) lines?$`, func(n int) error { return s.pageHasLines(n) })
}

// TestFeatures runs the Godog scenarios under features/.
func TestFeatures(t *testing.T) {
	entries, err := os.ReadDir("features")
	if err != nil {
		t.Fatalf("failed to read features directory: %v", err)
	}

	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "progress"
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".feature") {
			continue
		}
		featurePath := filepath.Join("features", e.Name())
		t.Run(e.Name(), func(t *testing.T) {
			suite := godog.TestSuite{
				ScenarioInitializer: InitializeScenario,
				Options: &godog.Options{
					Format:   format,
					Tags:     os.Getenv("GODOG_TAGS"),
					Paths:    []string{featurePath},
					TestingT: t,
					Strict:   true,
				},
			}
			if suite.Run() != 0 {
				t.Fatalf("feature %s failed", featurePath)
			}
		})
	}
}
