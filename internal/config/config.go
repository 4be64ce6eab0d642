// Package config loads errprop configuration.
//
// Values are layered: NewDefaultConfig, then the YAML config file, then
// ERRPROP_* environment variables. See Load.
package config

import (
	"errors"
	"fmt"
	"time"
)

// DefaultPrecision is the number of decimals kept in numeric derivation lines.
const DefaultPrecision = 4

// Config holds the complete errprop configuration.
type Config struct {
	Capture   CaptureConfig   `koanf:"capture"`
	Render    RenderConfig    `koanf:"render"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// CaptureConfig controls capture sessions.
type CaptureConfig struct {
	// Precision is used when a worksheet does not set its own.
	Precision int `koanf:"precision"`
	// MaxSteps bounds the ledger of one session. 0 means unlimited.
	MaxSteps int `koanf:"max_steps"`
}

// RenderConfig controls how derivations are printed.
type RenderConfig struct {
	Format string `koanf:"format"` // plain, latex or json
	Color  bool   `koanf:"color"`
}

// LoggingConfig holds the subset of logging settings exposed in the config file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"` // grpc or http/protobuf
	Insecure       bool     `koanf:"insecure"`
	ServiceName    string   `koanf:"service_name"`
	SampleRate     float64  `koanf:"sample_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Render formats.
const (
	FormatPlain = "plain"
	FormatLaTeX = "latex"
	FormatJSON  = "json"
)

// NewDefaultConfig returns the built-in defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			Precision: DefaultPrecision,
		},
		Render: RenderConfig{
			Format: FormatPlain,
			Color:  true,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			Insecure:       true,
			ServiceName:    "errprop",
			SampleRate:     1.0,
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Capture.Precision < 0 {
		return fmt.Errorf("capture.precision must be >= 0, got %d", c.Capture.Precision)
	}
	if c.Capture.MaxSteps < 0 {
		return fmt.Errorf("capture.max_steps must be >= 0, got %d", c.Capture.MaxSteps)
	}

	switch c.Render.Format {
	case FormatPlain, FormatLaTeX, FormatJSON:
	default:
		return fmt.Errorf("render.format must be one of plain, latex, json; got %q", c.Render.Format)
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry.endpoint required when telemetry is enabled")
		}
		if c.Telemetry.ServiceName == "" {
			return errors.New("telemetry.service_name required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return fmt.Errorf("telemetry.protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry.sample_rate must be in [0, 1], got %v", c.Telemetry.SampleRate)
		}
		if c.Telemetry.ExportInterval.Duration() <= 0 {
			return errors.New("telemetry.export_interval must be positive")
		}
	}

	return nil
}
