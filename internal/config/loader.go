package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "lipi"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "LIPI"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, so flags bound by
// the commands take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on its own viper instance.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and defaults,
// then validates it.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithoutValidation is Load without the validation step.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.LoadWithFileWithoutValidation("")
}

// LoadWithFile loads configuration from a specific file path. An empty path
// searches the standard locations.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing file in the search paths is fine, defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps keys like server.port to LIPI_SERVER_PORT.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key, which also makes AutomaticEnv see it.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("pipeline.padding", d.Pipeline.Padding)

	l.v.SetDefault("detector.api_url", d.Detector.APIURL)
	l.v.SetDefault("detector.api_key", d.Detector.APIKey)
	l.v.SetDefault("detector.timeout_sec", d.Detector.Timeout)
	l.v.SetDefault("detector.temp_dir", d.Detector.TempDir)
	l.v.SetDefault("detector.cache_enabled", d.Detector.CacheEnabled)
	l.v.SetDefault("detector.cache_ttl_sec", d.Detector.CacheTTL)

	l.v.SetDefault("recognizer.backend", d.Recognizer.Backend)
	l.v.SetDefault("recognizer.image_height", d.Recognizer.ImageHeight)
	l.v.SetDefault("recognizer.max_width", d.Recognizer.MaxWidth)
	l.v.SetDefault("recognizer.pad_width_multiple", d.Recognizer.PadWidthMultiple)
	l.v.SetDefault("recognizer.num_threads", d.Recognizer.NumThreads)
	l.v.SetDefault("recognizer.library_path", d.Recognizer.LibraryPath)
	l.v.SetDefault("recognizer.gpu.enabled", d.Recognizer.GPU.UseGPU)
	l.v.SetDefault("recognizer.gpu.device_id", d.Recognizer.GPU.DeviceID)
	l.v.SetDefault("recognizer.gpu.mem_limit", d.Recognizer.GPU.MemLimit)
	l.v.SetDefault("recognizer.gpu.arena_extend_strategy", d.Recognizer.GPU.ArenaExtendStrategy)
	l.v.SetDefault("recognizer.gemini.api_key", d.Recognizer.Gemini.APIKey)
	l.v.SetDefault("recognizer.gemini.model", d.Recognizer.Gemini.Model)
	l.v.SetDefault("recognizer.gemini.attempts", d.Recognizer.Gemini.Attempts)
	l.v.SetDefault("recognizer.tesseract.data_path", d.Recognizer.Tesseract.DataPath)
	l.v.SetDefault("recognizer.tesseract.languages", d.Recognizer.Tesseract.Languages)

	l.v.SetDefault("database.dsn", d.Database.DSN)
	l.v.SetDefault("database.max_conns", d.Database.MaxConns)
	l.v.SetDefault("redis.url", d.Redis.URL)
	l.v.SetDefault("queue.name", d.Queue.Name)
	l.v.SetDefault("queue.concurrency", d.Queue.Concurrency)
	l.v.SetDefault("queue.max_retry", d.Queue.MaxRetry)
	l.v.SetDefault("queue.timeout_sec", d.Queue.TimeoutSec)
	l.v.SetDefault("storage.dir", d.Storage.Dir)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)
	l.v.SetDefault("output.overlay_dir", d.Output.OverlayDir)
	l.v.SetDefault("output.overlay_skipped_color", d.Output.SkippedColor)
	l.v.SetDefault("output.overlay_thickness", d.Output.Thickness)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.default_language", d.Server.DefaultLanguage)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.requests_per_day", d.Server.RateLimit.RequestsPerDay)
	l.v.SetDefault("server.rate_limit.data_per_day_mb", d.Server.RateLimit.DataPerDayMB)

	l.v.SetDefault("telegram.token", d.Telegram.Token)
	l.v.SetDefault("telegram.default_language", d.Telegram.DefaultLanguage)
	l.v.SetDefault("telegram.max_file_mb", d.Telegram.MaxFileMB)
	l.v.SetDefault("telegram.timeout_sec", d.Telegram.TimeoutSec)
	l.v.SetDefault("telegram.poll_timeout", d.Telegram.PollTimeout)
	l.v.SetDefault("telegram.debug", d.Telegram.Debug)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes a configuration file holding every default.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWith(viper.New())
	loader.setDefaults()
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	return append(paths, "/etc/"+ConfigFileName)
}

// PrintConfigInfo prints information about configuration loading for debugging.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", l.GetConfigFileUsed())
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
