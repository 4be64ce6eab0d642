package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/errprop/internal/config"
	"github.com/fyrsmithlabs/errprop/internal/logging"
	"github.com/fyrsmithlabs/errprop/internal/telemetry"
	"github.com/fyrsmithlabs/errprop/internal/worksheet"
)

const shutdownTimeout = 5 * time.Second

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
}

func newApp(ctx context.Context, configPath, logLevel string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logger, err := newLogger(cfg.Logging, tel)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Error(h.Err))
	}

	return &app{cfg: cfg, logger: logger, tel: tel}, nil
}

func newLogger(c config.LoggingConfig, tel *telemetry.Telemetry) (*logging.Logger, error) {
	level, err := logging.LevelFromString(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	cfg := logging.NewDefaultConfig()
	cfg.Level = level
	cfg.Format = c.Format
	cfg.Output.OTEL = tel.IsEnabled()

	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return logger, nil
}

// runner builds a worksheet runner from the configuration. metrics may be nil.
func (a *app) runner(metrics *worksheet.Metrics) *worksheet.Runner {
	return worksheet.NewRunner(
		worksheet.WithLogger(a.logger),
		worksheet.WithTracer(a.tel.Tracer(worksheet.InstrumentationName)),
		worksheet.WithMeter(a.tel.Meter(worksheet.InstrumentationName)),
		worksheet.WithMetrics(metrics),
		worksheet.WithMaxSteps(a.cfg.Capture.MaxSteps),
		worksheet.WithDefaultPrecision(a.cfg.Capture.Precision),
	)
}

func (a *app) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.tel.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if err := a.logger.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("logger sync: %w", err))
	}
	return errors.Join(errs...)
}
