// Package config loads lipi settings from files, environment variables and
// flags, and converts them into the configuration of each component.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/lipi/internal/bot"
	"github.com/MeKo-Tech/lipi/internal/detector"
	"github.com/MeKo-Tech/lipi/internal/geometry"
	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/MeKo-Tech/lipi/internal/queue"
	"github.com/MeKo-Tech/lipi/internal/recognizer"
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/server"
	"github.com/MeKo-Tech/lipi/internal/store"
)

// DefaultDetectorURL is the hosted inference endpoint used when none is configured.
const DefaultDetectorURL = "https://detect.roboflow.com"

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	onnxCfg := recognizer.DefaultONNXConfig()
	gemini := recognizer.DefaultGeminiConfig()
	queueCfg := queue.DefaultConfig()
	overlay := pipeline.DefaultOverlayOptions()

	tessLangs := map[string]string{}
	for lang, code := range recognizer.DefaultTesseractConfig().Languages {
		tessLangs[string(lang)] = code
	}

	return Config{
		ModelsDir: onnxCfg.ModelsDir,
		LogLevel:  "info",
		Pipeline:  PipelineConfig{Padding: geometry.Padding},
		Detector: DetectorConfig{
			APIURL:       DefaultDetectorURL,
			Timeout:      30,
			CacheEnabled: true,
			CacheTTL:     int((24 * time.Hour).Seconds()),
		},
		Recognizer: RecognizerConfig{
			Backend:          recognizer.BackendONNX,
			ImageHeight:      onnxCfg.ImageHeight,
			MaxWidth:         onnxCfg.MaxWidth,
			PadWidthMultiple: onnxCfg.PadWidthMultiple,
			NumThreads:       onnxCfg.NumThreads,
			GPU:              onnxCfg.GPU,
			Gemini:           GeminiConfig{Model: gemini.Model, Attempts: gemini.Attempts},
			Tesseract:        TesseractConfig{Languages: tessLangs},
		},
		Database: DatabaseConfig{MaxConns: 4},
		Queue: QueueConfig{
			Name:        queueCfg.Queue,
			Concurrency: queueCfg.Concurrency,
			MaxRetry:    queueCfg.MaxRetry,
			TimeoutSec:  int(queueCfg.Timeout.Seconds()),
		},
		Storage: StorageConfig{Dir: "data"},
		Output: OutputConfig{
			Format:       pipeline.FormatText,
			SkippedColor: overlay.SkippedColor,
			Thickness:    overlay.Thickness,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			DefaultLanguage: string(script.English),
		},
		Telegram: TelegramConfig{
			DefaultLanguage: string(script.English),
			MaxFileMB:       20,
			TimeoutSec:      120,
			PollTimeout:     60,
		},
	}
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{pipeline.FormatText, pipeline.FormatJSON, pipeline.FormatYAML, pipeline.FormatCSV}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	validBackends := []string{recognizer.BackendONNX, recognizer.BackendGemini, recognizer.BackendTesseract}
	if !slices.Contains(validBackends, c.Recognizer.Backend) {
		return fmt.Errorf("invalid recognizer backend: %s (must be one of: %s)", c.Recognizer.Backend, strings.Join(validBackends, ", "))
	}
	if c.Recognizer.Backend == recognizer.BackendGemini && c.Recognizer.Gemini.APIKey == "" {
		return errors.New("recognizer.gemini.api_key is required for the gemini backend")
	}
	if err := c.Recognizer.GPU.Validate(); err != nil {
		return fmt.Errorf("invalid recognizer gpu settings: %w", err)
	}

	if strings.TrimSpace(c.Detector.APIURL) == "" {
		return errors.New("detector.api_url is required")
	}
	if c.Pipeline.Padding < 0 {
		return fmt.Errorf("invalid pipeline padding: %d (must not be negative)", c.Pipeline.Padding)
	}

	table, err := c.ScriptTable()
	if err != nil {
		return err
	}
	for _, name := range []string{c.Server.DefaultLanguage, c.Telegram.DefaultLanguage} {
		if name == "" {
			continue
		}
		if _, err := table.Lookup(script.Language(name)); err != nil {
			return fmt.Errorf("invalid default language: %w", err)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("invalid queue concurrency: %d (must be positive)", c.Queue.Concurrency)
	}
	if c.Queue.MaxRetry < 0 {
		return fmt.Errorf("invalid queue max retry: %d (must not be negative)", c.Queue.MaxRetry)
	}
	return nil
}

// ScriptTable applies the scripts overrides to the built-in profiles. A
// language that is not built in must name its detector model and sequencing.
func (c *Config) ScriptTable() (script.Table, error) {
	table := script.DefaultTable()
	for name, o := range c.Scripts {
		lang := script.ParseLanguage(name)
		p, ok := table[lang]
		if !ok {
			p = script.Profile{
				Language:      lang,
				LineThreshold: script.DefaultLineThreshold,
				Mask:          true,
				LineSeparator: "\n",
				WordSeparator: " ",
			}
		}
		if o.DetectorModelID != "" {
			p.DetectorModelID = o.DetectorModelID
		}
		if o.Sequencing != "" {
			p.Sequencing = script.Sequencing(strings.ToLower(o.Sequencing))
		}
		if o.LineThreshold > 0 {
			p.LineThreshold = o.LineThreshold
		}
		table[lang] = p
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scripts configuration: %w", err)
	}
	return table, nil
}

// ToPipelineConfig converts the config to the pipeline configuration.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	table, err := c.ScriptTable()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{Scripts: table, Padding: c.Pipeline.Padding}, nil
}

// ToRecognizerConfig converts to recognizer.BackendConfig.
func (c *Config) ToRecognizerConfig() recognizer.BackendConfig {
	r := c.Recognizer

	onnxCfg := recognizer.DefaultONNXConfig()
	if c.ModelsDir != "" {
		onnxCfg.ModelsDir = c.ModelsDir
	}
	if len(r.Models) > 0 {
		onnxCfg.Models = make(map[script.Language]recognizer.ONNXModelPaths, len(r.Models))
		for name, p := range r.Models {
			onnxCfg.Models[script.ParseLanguage(name)] = recognizer.ONNXModelPaths{ModelPath: p.ModelPath, DictPath: p.DictPath}
		}
	}
	if r.ImageHeight > 0 {
		onnxCfg.ImageHeight = r.ImageHeight
	}
	onnxCfg.MaxWidth = r.MaxWidth
	if r.PadWidthMultiple > 0 {
		onnxCfg.PadWidthMultiple = r.PadWidthMultiple
	}
	onnxCfg.NumThreads = r.NumThreads
	onnxCfg.LibraryPath = r.LibraryPath
	onnxCfg.GPU = r.GPU

	gemini := recognizer.DefaultGeminiConfig()
	gemini.APIKey = r.Gemini.APIKey
	if r.Gemini.Model != "" {
		gemini.Model = r.Gemini.Model
	}
	if r.Gemini.Attempts > 0 {
		gemini.Attempts = r.Gemini.Attempts
	}

	tess := recognizer.DefaultTesseractConfig()
	tess.DataPath = r.Tesseract.DataPath
	for name, code := range r.Tesseract.Languages {
		tess.Languages[script.ParseLanguage(name)] = code
	}

	return recognizer.BackendConfig{
		Backend:   r.Backend,
		ONNX:      onnxCfg,
		Gemini:    gemini,
		Tesseract: tess,
	}
}

// ToDetectorConfig converts to detector.RoboflowConfig.
func (c *Config) ToDetectorConfig() detector.RoboflowConfig {
	return detector.RoboflowConfig{
		APIURL:  c.Detector.APIURL,
		APIKey:  c.Detector.APIKey,
		Timeout: seconds(c.Detector.Timeout),
	}
}

// ToQueueConfig converts to queue.Config.
func (c *Config) ToQueueConfig() queue.Config {
	return queue.Config{
		RedisURL:    c.Redis.URL,
		Queue:       c.Queue.Name,
		Concurrency: c.Queue.Concurrency,
		MaxRetry:    c.Queue.MaxRetry,
		Timeout:     seconds(c.Queue.TimeoutSec),
	}
}

// ToPostgresConfig converts to store.PostgresConfig.
func (c *Config) ToPostgresConfig() store.PostgresConfig {
	return store.PostgresConfig{
		DSN:      c.Database.DSN,
		MaxConns: int32(min(max(c.Database.MaxConns, 0), 1<<16)), //nolint:gosec // bounded above
	}
}

// ToOverlayOptions converts the output overlay settings.
func (c *Config) ToOverlayOptions() pipeline.OverlayOptions {
	opts := pipeline.DefaultOverlayOptions()
	if c.Output.SkippedColor != "" {
		opts.SkippedColor = c.Output.SkippedColor
	}
	if c.Output.Thickness > 0 {
		opts.Thickness = c.Output.Thickness
	}
	return opts
}

// ToServerConfig converts to server.Config.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		CORSOrigin:      c.Server.CORSOrigin,
		MaxUploadMB:     int64(c.Server.MaxUploadMB),
		TimeoutSec:      c.Server.TimeoutSec,
		DefaultLanguage: script.ParseLanguage(c.Server.DefaultLanguage),
		Overlay:         c.ToOverlayOptions(),
	}
}

// ToRateLimits converts to server.Limits.
func (c *Config) ToRateLimits() server.Limits {
	rl := c.Server.RateLimit
	return server.Limits{
		RequestsPerMinute: rl.RequestsPerMinute,
		RequestsPerHour:   rl.RequestsPerHour,
		RequestsPerDay:    rl.RequestsPerDay,
		DataPerDay:        rl.DataPerDayMB << 20,
	}
}

// ToBotConfig converts to bot.Config.
func (c *Config) ToBotConfig() bot.Config {
	return bot.Config{
		DefaultLanguage: script.ParseLanguage(c.Telegram.DefaultLanguage),
		MaxFileMB:       int64(c.Telegram.MaxFileMB),
		Timeout:         seconds(c.Telegram.TimeoutSec),
		PollTimeout:     c.Telegram.PollTimeout,
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
