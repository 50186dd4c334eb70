package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skypro1111/mic-capture-service/internal/capture"
)

// Config represents the complete service configuration
type Config struct {
	Capture   CaptureConfig         `yaml:"capture"`
	Encoder   capture.EncoderConfig `yaml:"encoder"`
	Recording RecordingConfig       `yaml:"recording"`
	HTTP      HTTPConfig            `yaml:"http"`
	Logging   LoggingConfig         `yaml:"logging"`
}

// CaptureConfig contains input stream parameters
type CaptureConfig struct {
	Device     string `yaml:"device"`      // device ID, empty for default
	SampleRate int    `yaml:"sample_rate"` // Hz
	Channels   int    `yaml:"channels"`
	BlockSize  int    `yaml:"block_size"` // frames per delivered block
}

// RecordingConfig contains session and output parameters
type RecordingConfig struct {
	Mode           string  `yaml:"mode"` // "pcm" or "compressed"
	OutputDir      string  `yaml:"output_dir"`
	FilenamePrefix string  `yaml:"filename_prefix"`
	TickInterval   float64 `yaml:"tick_interval"` // seconds, 0 disables ticks
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			SampleRate: 44100,
			Channels:   1,
			BlockSize:  4096,
		},
		Encoder: capture.EncoderConfig{
			Command:   "ffmpeg",
			Codec:     "libopus",
			Bitrate:   "64k",
			Container: "ogg",
			MIME:      "audio/ogg",
		},
		Recording: RecordingConfig{
			Mode:           "pcm",
			OutputDir:      "recordings",
			FilenamePrefix: "recording",
			TickInterval:   1.0,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Encoder.Validate(); err != nil {
		return fmt.Errorf("encoder config: %w", err)
	}

	if err := c.Recording.Validate(); err != nil {
		return fmt.Errorf("recording config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate checks capture stream parameters
func (c *CaptureConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}

	if c.Channels < 1 || c.Channels > 8 {
		return fmt.Errorf("channels must be between 1 and 8, got %d", c.Channels)
	}

	if c.BlockSize < 64 || c.BlockSize > 65536 {
		return fmt.Errorf("block_size must be between 64 and 65536, got %d", c.BlockSize)
	}

	return nil
}

// Validate checks recording parameters
func (c *RecordingConfig) Validate() error {
	if c.Mode != "pcm" && c.Mode != "wav" && c.Mode != "compressed" {
		return fmt.Errorf("mode must be pcm or compressed, got %q", c.Mode)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}

	if c.TickInterval < 0 {
		return fmt.Errorf("tick_interval must not be negative, got %g", c.TickInterval)
	}

	return nil
}

// Validate checks HTTP server parameters
func (c *HTTPConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	return nil
}

// Validate checks logging parameters
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be debug, info, warn, or error, got %q", c.Level)
	}

	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", c.Format)
	}

	return nil
}

// GetTickInterval returns the tick interval as a duration.
func (c *RecordingConfig) GetTickInterval() time.Duration {
	return time.Duration(c.TickInterval * float64(time.Second))
}
