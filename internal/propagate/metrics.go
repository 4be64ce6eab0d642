package propagate

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/errprop/internal/expr"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/errprop/internal/propagate"

// Metrics holds the propagation instruments.
type Metrics struct {
	operationsTotal   metric.Int64Counter
	domainErrorsTotal metric.Int64Counter

	initialized bool
}

// NewMetrics creates the propagation instruments. A nil meter uses the
// global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	m.operationsTotal, err = meter.Int64Counter(
		"errprop.propagate.operations_total",
		metric.WithDescription("Operations computed, by operation"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	m.domainErrorsTotal, err = meter.Int64Counter(
		"errprop.propagate.domain_errors_total",
		metric.WithDescription("Operations rejected as mathematically undefined, by operation"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// RecordOperation counts one computed operation.
func (m *Metrics) RecordOperation(ctx context.Context, op expr.Op) {
	if m == nil || !m.initialized {
		return
	}
	m.operationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", string(op))))
}

// RecordDomainError counts one domain error.
func (m *Metrics) RecordDomainError(ctx context.Context, op expr.Op) {
	if m == nil || !m.initialized {
		return
	}
	m.domainErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", string(op))))
}
