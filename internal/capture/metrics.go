package capture

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/errprop/internal/expr"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/errprop/internal/capture"

// Session outcomes reported on errprop.capture.sessions_total.
const (
	outcomeDerived = "derived"
	outcomeEmpty   = "empty"
	outcomeFailed  = "failed"
)

// Metrics holds the capture instruments.
type Metrics struct {
	sessionsTotal   metric.Int64Counter
	stepsTotal      metric.Int64Counter
	derivationLines metric.Int64Histogram

	initialized bool
}

// NewMetrics creates the capture instruments. A nil meter uses the global
// meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	m.sessionsTotal, err = meter.Int64Counter(
		"errprop.capture.sessions_total",
		metric.WithDescription("Capture sessions ended, by outcome"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	m.stepsTotal, err = meter.Int64Counter(
		"errprop.capture.steps_total",
		metric.WithDescription("Steps recorded into capture ledgers, by operation"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, err
	}

	m.derivationLines, err = meter.Int64Histogram(
		"errprop.capture.derivation_lines",
		metric.WithDescription("Lines per reconstructed derivation"),
		metric.WithUnit("{line}"),
		metric.WithExplicitBucketBoundaries(2, 3, 5, 8, 13, 21, 34, 55, 89),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// RecordStep counts one recorded step.
func (m *Metrics) RecordStep(ctx context.Context, op expr.Op) {
	if m == nil || !m.initialized {
		return
	}
	m.stepsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", string(op))))
}

// RecordSessionEnded counts an ended session; lines is recorded only for
// derived sessions.
func (m *Metrics) RecordSessionEnded(ctx context.Context, outcome string, lines int) {
	if m == nil || !m.initialized {
		return
	}
	m.sessionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if outcome == outcomeDerived {
		m.derivationLines.Record(ctx, int64(lines))
	}
}
