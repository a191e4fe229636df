//nolint:lll
package config

import "github.com/MeKo-Tech/lipi/internal/onnx"

// Config represents the complete configuration for the lipi OCR application.
// It covers every command (image, pdf, serve, worker, bot) and supports
// loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Per-language overrides of the built-in script profiles, keyed by language name.
	Scripts map[string]ScriptConfig `mapstructure:"scripts" yaml:"scripts" json:"scripts"`

	Pipeline   PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`

	// Persistence and background processing
	Database DatabaseConfig `mapstructure:"database" yaml:"database" json:"database"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis" json:"redis"`
	Queue    QueueConfig    `mapstructure:"queue" yaml:"queue" json:"queue"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage" json:"storage"`

	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram" json:"telegram"`
}

// ScriptConfig overrides fields of one script profile. Zero values keep the
// built-in setting.
type ScriptConfig struct {
	DetectorModelID string  `mapstructure:"detector_model_id" yaml:"detector_model_id" json:"detector_model_id"`
	Sequencing      string  `mapstructure:"sequencing" yaml:"sequencing" json:"sequencing"`
	LineThreshold   float64 `mapstructure:"line_threshold" yaml:"line_threshold" json:"line_threshold"`
}

// PipelineConfig contains settings shared by every run.
type PipelineConfig struct {
	Padding int `mapstructure:"padding" yaml:"padding" json:"padding"`
}

// DetectorConfig contains the hosted region detector settings.
type DetectorConfig struct {
	APIURL  string `mapstructure:"api_url" yaml:"api_url" json:"api_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	Timeout int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir" json:"temp_dir"`

	// Predictions are cached in redis when enabled and redis.url is set.
	CacheEnabled bool `mapstructure:"cache_enabled" yaml:"cache_enabled" json:"cache_enabled"`
	CacheTTL     int  `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec" json:"cache_ttl_sec"`
}

// RecognizerConfig selects and tunes the recognition backend.
type RecognizerConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"`

	// ONNX backend
	Models           map[string]ModelPaths `mapstructure:"models" yaml:"models" json:"models"`
	ImageHeight      int                   `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	MaxWidth         int                   `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	PadWidthMultiple int                   `mapstructure:"pad_width_multiple" yaml:"pad_width_multiple" json:"pad_width_multiple"`
	NumThreads       int                   `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	LibraryPath      string                `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
	GPU              onnx.GPUConfig        `mapstructure:"gpu" yaml:"gpu" json:"gpu"`

	Gemini    GeminiConfig    `mapstructure:"gemini" yaml:"gemini" json:"gemini"`
	Tesseract TesseractConfig `mapstructure:"tesseract" yaml:"tesseract" json:"tesseract"`
}

// ModelPaths points at one language's recognition model and dictionary.
type ModelPaths struct {
	ModelPath string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DictPath  string `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
}

// GeminiConfig contains the vision LLM backend settings.
type GeminiConfig struct {
	APIKey   string `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	Model    string `mapstructure:"model" yaml:"model" json:"model"`
	Attempts int    `mapstructure:"attempts" yaml:"attempts" json:"attempts"`
}

// TesseractConfig contains the Tesseract backend settings.
type TesseractConfig struct {
	DataPath  string            `mapstructure:"data_path" yaml:"data_path" json:"data_path"`
	Languages map[string]string `mapstructure:"languages" yaml:"languages" json:"languages"`
}

// DatabaseConfig selects the document store. An empty DSN keeps documents in memory.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
	MaxConns int    `mapstructure:"max_conns" yaml:"max_conns" json:"max_conns"`
}

// RedisConfig points at the redis instance used by the queue, detector cache
// and rate limiter. Empty disables all three.
type RedisConfig struct {
	URL string `mapstructure:"url" yaml:"url" json:"url"`
}

// QueueConfig contains background OCR job settings.
type QueueConfig struct {
	Name        string `mapstructure:"name" yaml:"name" json:"name"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
	MaxRetry    int    `mapstructure:"max_retry" yaml:"max_retry" json:"max_retry"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// StorageConfig contains the uploaded image store settings.
type StorageConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	File         string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir   string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	SkippedColor string `mapstructure:"overlay_skipped_color" yaml:"overlay_skipped_color" json:"overlay_skipped_color"`
	Thickness    int    `mapstructure:"overlay_thickness" yaml:"overlay_thickness" json:"overlay_thickness"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	DefaultLanguage string          `mapstructure:"default_language" yaml:"default_language" json:"default_language"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig caps uploads per client. Zero disables a limit.
type RateLimitConfig struct {
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	RequestsPerDay    int   `mapstructure:"requests_per_day" yaml:"requests_per_day" json:"requests_per_day"`
	DataPerDayMB      int64 `mapstructure:"data_per_day_mb" yaml:"data_per_day_mb" json:"data_per_day_mb"`
}

// TelegramConfig contains the chat bot settings.
type TelegramConfig struct {
	Token           string `mapstructure:"token" yaml:"token" json:"token"`
	DefaultLanguage string `mapstructure:"default_language" yaml:"default_language" json:"default_language"`
	MaxFileMB       int    `mapstructure:"max_file_mb" yaml:"max_file_mb" json:"max_file_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	PollTimeout     int    `mapstructure:"poll_timeout" yaml:"poll_timeout" json:"poll_timeout"`
	Debug           bool   `mapstructure:"debug" yaml:"debug" json:"debug"`
}
