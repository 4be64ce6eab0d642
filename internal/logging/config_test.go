package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, zapcore.WarnLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.Output.Stderr)
	assert.False(t, cfg.Output.OTEL)
	assert.False(t, cfg.Sampling.Enabled)
	assert.Equal(t, "errprop", cfg.Fields["service"])
	assert.NoError(t, cfg.Validate())
}

func TestDefaultLevelSamplingConfig_ErrorsAbsent(t *testing.T) {
	levels := DefaultLevelSamplingConfig()

	assert.Contains(t, levels, zapcore.InfoLevel)
	assert.NotContains(t, levels, zapcore.ErrorLevel)
	assert.NotContains(t, levels, zapcore.FatalLevel)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "bad format",
			mutate:  func(c *Config) { c.Format = "xml" },
			wantErr: "format must be",
		},
		{
			name: "no outputs",
			mutate: func(c *Config) {
				c.Output.Stderr = false
				c.Output.OTEL = false
			},
			wantErr: "at least one output",
		},
		{
			name: "sampling without tick",
			mutate: func(c *Config) {
				c.Sampling.Enabled = true
				c.Sampling.Tick = 0
			},
			wantErr: "sampling tick",
		},
		{
			name: "negative caller skip",
			mutate: func(c *Config) {
				c.Caller.Enabled = true
				c.Caller.Skip = -1
			},
			wantErr: "caller skip",
		},
		{
			name:    "empty field key",
			mutate:  func(c *Config) { c.Fields[""] = "x" },
			wantErr: "field key cannot be empty",
		},
		{
			name:    "empty field value",
			mutate:  func(c *Config) { c.Fields["host"] = "" },
			wantErr: `field "host" has empty value`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
