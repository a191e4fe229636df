//go:build tesseract

package recognizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/lipi/internal/script"
)

// TesseractAvailable reports whether the binary was built with Tesseract support.
const TesseractAvailable = true

// Load implements Loader.
func (l *TesseractLoader) Load(_ context.Context, lang script.Language, _ Device) (Model, Device, error) {
	code := l.cfg.language(lang)
	client := gosseract.NewClient()
	if l.cfg.DataPath != "" {
		if err := client.SetTessdataPrefix(l.cfg.DataPath); err != nil {
			_ = client.Close()
			return nil, "", err
		}
	}
	if err := client.SetLanguage(code); err != nil {
		_ = client.Close()
		return nil, "", fmt.Errorf("tesseract language %q: %w", code, err)
	}
	mode := gosseract.PSM_SINGLE_LINE
	if script.DefaultTable()[lang].Sequencing == script.Words {
		mode = gosseract.PSM_SINGLE_WORD
	}
	if err := client.SetPageSegMode(mode); err != nil {
		_ = client.Close()
		return nil, "", err
	}
	return &tesseractModel{client: client}, DeviceCPU, nil
}

type tesseractModel struct {
	client *gosseract.Client
}

// Recognize implements Model.
func (t *tesseractModel) Recognize(_ context.Context, img *image.RGBA) (string, error) {
	prepared := adjust.Contrast(effect.Grayscale(img), 0.2)
	var buf bytes.Buffer
	if err := png.Encode(&buf, prepared); err != nil {
		return "", err
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", err
	}
	return t.client.Text()
}

// Close implements Model.
func (t *tesseractModel) Close() error { return t.client.Close() }
