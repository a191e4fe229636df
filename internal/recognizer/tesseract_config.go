package recognizer

import "github.com/MeKo-Tech/lipi/internal/script"

// TesseractConfig configures the Tesseract backend.
type TesseractConfig struct {
	DataPath  string
	Languages map[script.Language]string
}

// DefaultTesseractConfig maps the built-in scripts to traineddata names.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{Languages: map[script.Language]string{
		script.English: "eng",
		script.Nepali:  "nep",
	}}
}

func (c TesseractConfig) language(lang script.Language) string {
	if code, ok := c.Languages[lang]; ok && code != "" {
		return code
	}
	return string(lang)
}

// TesseractLoader loads gosseract clients per language.
type TesseractLoader struct {
	cfg TesseractConfig
}

// NewTesseractLoader creates a loader for cfg.
func NewTesseractLoader(cfg TesseractConfig) *TesseractLoader { return &TesseractLoader{cfg: cfg} }
