// Package config loads Chinki's runtime configuration from an optional
// YAML file plus CHINKI_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	// GoogleAPIKey authenticates against the Gemini Live API. Required.
	GoogleAPIKey string `mapstructure:"google_api_key"`

	// Model is the live model resource name.
	Model string `mapstructure:"model"`

	// Voice is the prebuilt voice for speech output.
	Voice string `mapstructure:"voice"`

	// MemoryStoreURL is the base URL of the memory backend.
	MemoryStoreURL string `mapstructure:"memory_store_url"`

	// WebPort is the dashboard listen port.
	WebPort string `mapstructure:"web_port"`

	// MaxRetries bounds automatic session reconnects.
	MaxRetries int `mapstructure:"max_retries"`

	// FrameInterval is the camera sampling cadence.
	FrameInterval time.Duration `mapstructure:"frame_interval"`

	// JPEGQuality is the quality tier for streamed camera frames.
	JPEGQuality int `mapstructure:"jpeg_quality"`

	// CaptureWindow is how long a memory clip records the microphone.
	CaptureWindow time.Duration `mapstructure:"capture_window"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// Load reads configuration from path (optional, "" skips the file) and
// the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	// Registered empty so AutomaticEnv can fill it; Unmarshal only sees
	// keys viper already knows about.
	v.SetDefault("google_api_key", "")
	v.SetDefault("model", "models/gemini-2.5-flash-native-audio-preview-12-2025")
	v.SetDefault("voice", "Kore")
	v.SetDefault("memory_store_url", "http://localhost:5000")
	v.SetDefault("web_port", "8090")
	v.SetDefault("max_retries", 3)
	v.SetDefault("frame_interval", time.Second)
	v.SetDefault("jpeg_quality", 50)
	v.SetDefault("capture_window", 3*time.Second)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("CHINKI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.GoogleAPIKey == "" {
		return Config{}, fmt.Errorf("google_api_key is required (set CHINKI_GOOGLE_API_KEY)")
	}
	return cfg, nil
}
