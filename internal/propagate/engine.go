package propagate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/errprop/internal/calcerr"
	"github.com/fyrsmithlabs/errprop/internal/capture"
	"github.com/fyrsmithlabs/errprop/internal/expr"
	"github.com/fyrsmithlabs/errprop/internal/logging"
	"github.com/fyrsmithlabs/errprop/internal/quantity"
)

// Engine applies operations to quantities and records them into its capture
// session while the session is active.
//
// An Engine is not safe for concurrent use.
type Engine struct {
	session *capture.Session
	logger  *logging.Logger
	metrics *Metrics
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	session *capture.Session
	logger  *logging.Logger
	meter   metric.Meter
	tracer  trace.Tracer
}

// WithSession makes the engine record into s instead of a session of its own.
func WithSession(s *capture.Session) Option {
	return func(o *engineOptions) { o.session = s }
}

// WithLogger sets the engine logger. It is also used for the engine's own
// session when WithSession is not given.
func WithLogger(l *logging.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithMeter sets the meter for engine metrics and the engine's own session.
func WithMeter(m metric.Meter) Option {
	return func(o *engineOptions) { o.meter = m }
}

// WithTracer sets the tracer of the engine's own session.
func WithTracer(t trace.Tracer) Option {
	return func(o *engineOptions) { o.tracer = t }
}

// New creates an engine.
func New(opts ...Option) *Engine {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.OrNop(o.logger)
	session := o.session
	if session == nil {
		session = capture.NewSession(
			capture.WithLogger(logger),
			capture.WithMeter(o.meter),
			capture.WithTracer(o.tracer),
		)
	}

	logger = logger.Named("propagate")
	metrics, err := NewMetrics(o.meter)
	if err != nil {
		logger.Warn(context.Background(), "propagation metrics disabled", zap.Error(err))
	}

	return &Engine{
		session: session,
		logger:  logger,
		metrics: metrics,
	}
}

// Session returns the capture session the engine records into.
func (e *Engine) Session() *capture.Session { return e.session }

// StartCapture starts recording every subsequent operation, rounding numeric
// sub-expressions to precision digits.
func (e *Engine) StartCapture(ctx context.Context, precision int) error {
	return e.session.Start(ctx, precision)
}

// EndCapture stops recording and returns the derivation of the last recorded
// operation, from fully symbolic to fully numeric.
func (e *Engine) EndCapture(ctx context.Context) ([]string, error) {
	return e.session.End(ctx)
}

// EndCaptureFrom stops recording and returns the derivation of q, which must
// be the result of an operation recorded in the current session. Otherwise
// it fails with capture.ErrNotCaptured; the session ends either way.
func (e *Engine) EndCaptureFrom(ctx context.Context, q quantity.Quantity) ([]string, error) {
	tok := q.Token()
	if q.Origin() != e.session.ID() {
		tok = 0
	}
	return e.session.EndFrom(ctx, tok)
}

// operand is one input of an operation. Bare scalars are described as
// literals in captured steps.
type operand struct {
	q       quantity.Quantity
	literal bool
}

func quantityOperand(q quantity.Quantity) operand {
	return operand{q: q}
}

func scalarOperand(op expr.Op, c float64) (operand, error) {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return operand{}, calcerr.Validation(string(op), "scalar operand %v is not finite", c)
	}
	q, err := quantity.Scalar(c, 0)
	if err != nil {
		return operand{}, err
	}
	return operand{q: q, literal: true}, nil
}

// binaryKernel computes one element of a binary operation.
type binaryKernel func(a, sa, b, sb float64) (value, err float64, domain error)

// unaryKernel computes one element of a unary operation.
type unaryKernel func(a, sa float64) (value, err float64, domain error)

func (e *Engine) binary(op expr.Op, x, y operand, kernel binaryKernel) (quantity.Quantity, error) {
	n, err := broadcastLen(op, x.q.Len(), y.q.Len())
	if err != nil {
		return quantity.Quantity{}, err
	}

	values := make([]float64, n)
	errs := make([]float64, n)
	for i := range n {
		xi, yi := elem(x.q, i), elem(y.q, i)
		v, s, derr := kernel(x.q.Value(xi), x.q.Error(xi), y.q.Value(yi), y.q.Error(yi))
		if err := e.checkElement(op, i, v, s, derr); err != nil {
			return quantity.Quantity{}, err
		}
		values[i], errs[i] = v, s
	}
	return e.finish(op, values, errs, x, y)
}

func (e *Engine) unary(op expr.Op, x operand, kernel unaryKernel) (quantity.Quantity, error) {
	if x.q.Len() == 0 {
		return quantity.Quantity{}, calcerr.Validation(string(op), "operand is empty")
	}

	n := x.q.Len()
	values := make([]float64, n)
	errs := make([]float64, n)
	for i := range n {
		v, s, derr := kernel(x.q.Value(i), x.q.Error(i))
		if err := e.checkElement(op, i, v, s, derr); err != nil {
			return quantity.Quantity{}, err
		}
		values[i], errs[i] = v, s
	}
	return e.finish(op, values, errs, x)
}

// checkElement turns a kernel failure or a non-finite result into a domain error.
func (e *Engine) checkElement(op expr.Op, i int, v, s float64, derr error) error {
	if derr == nil && (math.IsNaN(v) || math.IsInf(v, 0) || math.IsNaN(s) || math.IsInf(s, 0)) {
		derr = errNotFinite
	}
	if derr == nil {
		return nil
	}

	err := calcerr.Domain(string(op), "element %d: %v", i, derr)
	ctx := e.session.Context()
	e.metrics.RecordDomainError(ctx, op)
	e.logger.Debug(ctx, "domain error", zap.String("op", string(op)), zap.Int("element", i), zap.Error(derr))
	return err
}

// finish builds the result and, while capturing, records the step and tags
// the result with its token.
func (e *Engine) finish(op expr.Op, values, errs []float64, operands ...operand) (quantity.Quantity, error) {
	result, err := quantity.New(values, errs)
	if err != nil {
		return quantity.Quantity{}, fmt.Errorf("%s: %w", op, err)
	}

	ctx := e.session.Context()
	e.metrics.RecordOperation(ctx, op)
	if !e.session.Active() {
		return result, nil
	}

	descriptors := make([]expr.Operand, len(operands))
	for i, o := range operands {
		descriptors[i] = e.describe(o)
	}
	tok, err := e.session.Record(op, descriptors...)
	if err != nil {
		return quantity.Quantity{}, fmt.Errorf("record %s: %w", op, err)
	}

	e.logger.Trace(ctx, "step recorded",
		zap.String("op", string(op)),
		zap.Stringer("token", tok),
		zap.Int("len", result.Len()),
	)
	return result.WithToken(tok, e.session.ID()), nil
}

// describe picks the descriptor of o for the step being recorded. Tokens from
// other sessions are stale and fall back to the name or the value.
func (e *Engine) describe(o operand) expr.Operand {
	v := o.q.Value(0)
	switch {
	case o.literal:
		return expr.Literal{Value: v}
	case o.q.Token().Valid() && o.q.Origin() == e.session.ID():
		return expr.Ref{Token: o.q.Token(), Value: v}
	case o.q.Name() != "":
		return expr.Symbol{Name: o.q.Name(), Value: v}
	default:
		return expr.Literal{Value: v}
	}
}

// broadcastLen returns the result length of a binary operation. A
// single-element operand combines with an operand of any length.
func broadcastLen(op expr.Op, la, lb int) (int, error) {
	switch {
	case la == 0 || lb == 0:
		return 0, calcerr.Validation(string(op), "operand is empty")
	case la == lb:
		return la, nil
	case la == 1:
		return lb, nil
	case lb == 1:
		return la, nil
	default:
		return 0, calcerr.Validation(string(op), "operand lengths %d and %d do not broadcast", la, lb)
	}
}

func elem(q quantity.Quantity, i int) int {
	if q.Len() == 1 {
		return 0
	}
	return i
}

var (
	errZeroDivisor   = errors.New("division by zero")
	errNotFinite     = errors.New("result is not finite")
	errNonPositive   = errors.New("argument must be positive")
	errOutsideDomain = errors.New("argument outside [-1, 1]")
	errInfiniteSlope = errors.New("derivative is infinite at ±1")
)
