package recognizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/MeKo-Tech/lipi/internal/script"
)

// GeminiConfig configures the vision LLM backend.
type GeminiConfig struct {
	APIKey   string
	Model    string
	Attempts int
}

// DefaultGeminiConfig returns the default Gemini settings.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{Model: "gemini-1.5-flash", Attempts: 3}
}

// GeminiLoader opens one Gemini client per language. The model always
// runs remotely, which is reported as the CPU device.
type GeminiLoader struct {
	cfg GeminiConfig
}

// NewGeminiLoader creates a loader for cfg.
func NewGeminiLoader(cfg GeminiConfig) *GeminiLoader { return &GeminiLoader{cfg: cfg} }

// Load implements Loader.
func (l *GeminiLoader) Load(ctx context.Context, lang script.Language, _ Device) (Model, Device, error) {
	key := strings.TrimSpace(l.cfg.APIKey)
	if key == "" {
		return nil, "", errors.New("gemini api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, "", fmt.Errorf("gemini client: %w", err)
	}
	m := cl.GenerativeModel(strings.TrimSpace(l.cfg.Model))
	if m == nil {
		_ = cl.Close()
		return nil, "", errors.New("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{Temperature: ptrFloat32(0)}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(geminiPrompt(lang))}}

	attempts := l.cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	gen := func(ctx context.Context, parts ...genai.Part) (string, error) {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			return "", err
		}
		return firstText(resp), nil
	}
	return &geminiModel{client: cl, generate: gen, attempts: attempts}, DeviceCPU, nil
}

// geminiPrompt instructs the model to transcribe exactly one cropped region.
func geminiPrompt(lang script.Language) string {
	unit := "line"
	if script.DefaultTable()[lang].Sequencing == script.Words {
		unit = "word"
	}
	return fmt.Sprintf("You transcribe handwriting. The image is a single cropped %s of handwritten %s text. "+
		"Reply with the exact text only, without quotes, translation or commentary. "+
		"Reply with an empty message if the image holds no legible text.", unit, lang)
}

type geminiModel struct {
	client   *genai.Client
	generate func(ctx context.Context, parts ...genai.Part) (string, error)
	attempts int
}

// Recognize implements Model.
func (g *geminiModel) Recognize(ctx context.Context, img *image.RGBA) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode region: %w", err)
	}
	parts := []genai.Part{genai.Text("Transcribe this region."), genai.ImageData("png", buf.Bytes())}

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		txt, err := g.generate(ctx, parts...)
		if err == nil {
			return stripCodeFences(txt), nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
		}
	}
	return "", lastErr
}

// Close implements Model.
func (g *geminiModel) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

func ptrFloat32(v float32) *float32 { return &v }
