package config

import (
	"testing"
	"time"

	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/MeKo-Tech/lipi/internal/recognizer"
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "models", cfg.ModelsDir)
	assert.Equal(t, 5, cfg.Pipeline.Padding)
	assert.Equal(t, DefaultDetectorURL, cfg.Detector.APIURL)
	assert.Equal(t, recognizer.BackendONNX, cfg.Recognizer.Backend)
	assert.Equal(t, 48, cfg.Recognizer.ImageHeight)
	assert.Equal(t, "gemini-1.5-flash", cfg.Recognizer.Gemini.Model)
	assert.Equal(t, "nep", cfg.Recognizer.Tesseract.Languages["nepali"])
	assert.Equal(t, "ocr", cfg.Queue.Name)
	assert.Equal(t, 300, cfg.Queue.TimeoutSec)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "english", cfg.Server.DefaultLanguage)
	assert.Empty(t, cfg.Database.DSN, "memory store by default")
	assert.Empty(t, cfg.Redis.URL, "inline processing by default")

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"output format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"backend", func(c *Config) { c.Recognizer.Backend = "magic" }, "invalid recognizer backend"},
		{"gemini key", func(c *Config) { c.Recognizer.Backend = recognizer.BackendGemini }, "api_key is required"},
		{"detector url", func(c *Config) { c.Detector.APIURL = " " }, "detector.api_url"},
		{"padding", func(c *Config) { c.Pipeline.Padding = -1 }, "padding"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"concurrency", func(c *Config) { c.Queue.Concurrency = 0 }, "concurrency"},
		{"retry", func(c *Config) { c.Queue.MaxRetry = -1 }, "max retry"},
		{"default language", func(c *Config) { c.Server.DefaultLanguage = "klingon" }, "unsupported language"},
		{"bot language", func(c *Config) { c.Telegram.DefaultLanguage = "klingon" }, "unsupported language"},
		{"sequencing", func(c *Config) {
			c.Scripts = map[string]ScriptConfig{"nepali": {Sequencing: "spiral"}}
		}, "unknown sequencing"},
		{"new script without model", func(c *Config) {
			c.Scripts = map[string]ScriptConfig{"hindi": {Sequencing: "words"}}
		}, "detector model id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_GeminiWithKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Recognizer.Backend = recognizer.BackendGemini
	cfg.Recognizer.Gemini.APIKey = "k"
	require.NoError(t, cfg.Validate())
}

func TestScriptTable_Overrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scripts = map[string]ScriptConfig{
		"ne":    {LineThreshold: 35},
		"en":    {DetectorModelID: "custom-lines/7"},
		"hindi": {DetectorModelID: "hindi-words/2", Sequencing: "Words"},
	}

	table, err := cfg.ScriptTable()
	require.NoError(t, err)

	assert.InDelta(t, 35.0, table[script.Nepali].LineThreshold, 1e-9)
	assert.Equal(t, script.Words, table[script.Nepali].Sequencing, "untouched fields keep the built-in value")
	assert.Equal(t, "custom-lines/7", table[script.English].DetectorModelID)
	assert.True(t, table[script.English].Mask)
	assert.True(t, table[script.Nepali].Mask)

	hindi, err := table.Lookup("hindi")
	require.NoError(t, err)
	assert.Equal(t, script.Words, hindi.Sequencing)
	assert.InDelta(t, script.DefaultLineThreshold, hindi.LineThreshold, 1e-9)
	assert.Equal(t, "\n", hindi.LineSeparator)
	assert.True(t, hindi.Mask)
}

func TestScriptTable_DoesNotMutateDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scripts = map[string]ScriptConfig{"nepali": {LineThreshold: 99}}
	_, err := cfg.ScriptTable()
	require.NoError(t, err)
	assert.InDelta(t, script.DefaultLineThreshold, script.DefaultTable()[script.Nepali].LineThreshold, 1e-9)
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Padding = 9

	pc, err := cfg.ToPipelineConfig()
	require.NoError(t, err)
	assert.Equal(t, 9, pc.Padding)
	assert.ElementsMatch(t, []script.Language{script.English, script.Nepali}, pc.Scripts.Languages())

	cfg.Scripts = map[string]ScriptConfig{"nepali": {Sequencing: "zigzag"}}
	_, err = cfg.ToPipelineConfig()
	require.Error(t, err)
}

func TestToRecognizerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/opt/models"
	cfg.Recognizer.Models = map[string]ModelPaths{"ne": {ModelPath: "/m/ne.onnx"}}
	cfg.Recognizer.MaxWidth = 960
	cfg.Recognizer.GPU.UseGPU = true
	cfg.Recognizer.Gemini.APIKey = "secret"
	cfg.Recognizer.Gemini.Model = ""
	cfg.Recognizer.Tesseract.DataPath = "/usr/share/tessdata"
	cfg.Recognizer.Tesseract.Languages = map[string]string{"english": "eng_best"}

	rc := cfg.ToRecognizerConfig()

	assert.Equal(t, recognizer.BackendONNX, rc.Backend)
	assert.Equal(t, "/opt/models", rc.ONNX.ModelsDir)
	assert.Equal(t, 960, rc.ONNX.MaxWidth)
	assert.True(t, rc.ONNX.GPU.UseGPU)
	assert.Equal(t, "/m/ne.onnx", rc.ONNX.Paths(script.Nepali).ModelPath)
	assert.Equal(t, "/m/ne.onnx", rc.ONNX.Models[script.Nepali].ModelPath)
	assert.Equal(t, "/opt/models/english/model.onnx", rc.ONNX.Paths(script.English).ModelPath)

	assert.Equal(t, "secret", rc.Gemini.APIKey)
	assert.Equal(t, "gemini-1.5-flash", rc.Gemini.Model, "empty model keeps the default")

	assert.Equal(t, "/usr/share/tessdata", rc.Tesseract.DataPath)
	assert.Equal(t, "eng_best", rc.Tesseract.Languages[script.English])
	assert.Equal(t, "nep", rc.Tesseract.Languages[script.Nepali])
}

func TestComponentConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector.APIKey = "rf"
	cfg.Redis.URL = "redis://cache:6379/1"
	cfg.Database.DSN = "postgres://lipi@db/lipi"
	cfg.Server.DefaultLanguage = "ne"
	cfg.Server.RateLimit = RateLimitConfig{RequestsPerMinute: 5, DataPerDayMB: 2}
	cfg.Output.SkippedColor = "#123456"
	cfg.Telegram.DefaultLanguage = "nep"

	det := cfg.ToDetectorConfig()
	assert.Equal(t, DefaultDetectorURL, det.APIURL)
	assert.Equal(t, "rf", det.APIKey)
	assert.Equal(t, 30*time.Second, det.Timeout)

	q := cfg.ToQueueConfig()
	assert.Equal(t, "redis://cache:6379/1", q.RedisURL)
	assert.Equal(t, 5*time.Minute, q.Timeout)

	pg := cfg.ToPostgresConfig()
	assert.Equal(t, "postgres://lipi@db/lipi", pg.DSN)
	assert.Equal(t, int32(4), pg.MaxConns)

	srv := cfg.ToServerConfig()
	assert.Equal(t, script.Nepali, srv.DefaultLanguage)
	assert.Equal(t, int64(50), srv.MaxUploadMB)
	assert.Equal(t, "#123456", srv.Overlay.SkippedColor)
	assert.Equal(t, pipeline.DefaultOverlayOptions().Thickness, srv.Overlay.Thickness)

	limits := cfg.ToRateLimits()
	assert.Equal(t, 5, limits.RequestsPerMinute)
	assert.Equal(t, int64(2<<20), limits.DataPerDay)

	b := cfg.ToBotConfig()
	assert.Equal(t, script.Nepali, b.DefaultLanguage)
	assert.Equal(t, int64(20), b.MaxFileMB)
	assert.Equal(t, 2*time.Minute, b.Timeout)
}
