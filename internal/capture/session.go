package capture

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/errprop/internal/expr"
	"github.com/fyrsmithlabs/errprop/internal/logging"
)

// Session is a capture ledger. The zero value is not usable; call NewSession.
type Session struct {
	logger   *logging.Logger
	tracer   trace.Tracer
	metrics  *Metrics
	maxSteps int

	active    bool
	precision int
	next      expr.Token
	steps     []expr.Step
	id        string
	// ctx is the Start context with the session id attached; Record has no
	// context parameter of its own.
	ctx context.Context
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	logger   *logging.Logger
	tracer   trace.Tracer
	meter    metric.Meter
	maxSteps int
}

// WithLogger sets the session logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *sessionOptions) { o.logger = l }
}

// WithTracer sets the tracer used for End and reconstruction spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *sessionOptions) { o.tracer = t }
}

// WithMeter sets the meter for capture metrics.
func WithMeter(m metric.Meter) Option {
	return func(o *sessionOptions) { o.meter = m }
}

// WithMaxSteps bounds the number of steps a session may record. 0 means no limit.
func WithMaxSteps(n int) Option {
	return func(o *sessionOptions) { o.maxSteps = n }
}

// NewSession creates an inactive session.
func NewSession(opts ...Option) *Session {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.OrNop(o.logger).Named("capture")
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}
	metrics, err := NewMetrics(o.meter)
	if err != nil {
		logger.Warn(context.Background(), "capture metrics disabled", zap.Error(err))
	}
	if o.maxSteps < 0 {
		o.maxSteps = 0
	}

	return &Session{
		logger:   logger,
		tracer:   tracer,
		metrics:  metrics,
		maxSteps: o.maxSteps,
		next:     1,
		ctx:      context.Background(),
	}
}

// Start begins recording. Numeric sub-expressions are rounded to precision
// digits after the decimal point.
func (s *Session) Start(ctx context.Context, precision int) error {
	if s.active {
		return ErrSessionActive
	}
	if precision < 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidPrecision, precision)
	}

	s.active = true
	s.precision = precision
	s.next = 1
	s.steps = nil
	s.id = uuid.NewString()
	s.ctx = logging.WithSessionID(ctx, s.id)

	s.logger.Debug(s.ctx, "capture started", zap.Int("precision", precision))
	return nil
}

// Record renders op applied to operands and stores it under a new token.
//
// Ref operands must name steps already recorded in this session. Nothing is
// stored when Record fails.
func (s *Session) Record(op expr.Op, operands ...expr.Operand) (expr.Token, error) {
	if !s.active {
		return 0, ErrNoSession
	}
	if s.maxSteps > 0 && len(s.steps) >= s.maxSteps {
		return 0, fmt.Errorf("%w (%d steps)", ErrStepLimit, s.maxSteps)
	}
	for _, operand := range operands {
		if ref, ok := operand.(expr.Ref); ok && ref.Token >= s.next {
			return 0, fmt.Errorf("%w: %s has not been recorded", ErrUnknownToken, ref.Token)
		}
	}

	step, err := expr.Builder{Precision: s.precision}.Build(op, operands...)
	if err != nil {
		return 0, err
	}

	tok := s.next
	s.steps = append(s.steps, step)
	s.next++

	s.metrics.RecordStep(s.ctx, op)
	return tok, nil
}

// End reconstructs the derivation of the last recorded step and resets the
// session. The session is reset even when End fails.
func (s *Session) End(ctx context.Context) ([]string, error) {
	return s.end(ctx, expr.Token(len(s.steps)), false)
}

// EndFrom is End for the step recorded under tok. A zero tok, for a result
// no captured operation produced, fails with ErrNotCaptured.
func (s *Session) EndFrom(ctx context.Context, tok expr.Token) ([]string, error) {
	return s.end(ctx, tok, true)
}

func (s *Session) end(ctx context.Context, last expr.Token, explicit bool) ([]string, error) {
	if !s.active {
		return nil, ErrNoSession
	}
	defer s.reset()

	ctx = logging.WithSessionID(ctx, s.id)
	ctx, span := s.tracer.Start(ctx, "capture.End", trace.WithAttributes(
		attribute.String("capture.session_id", s.id),
		attribute.Int("capture.steps", len(s.steps)),
		attribute.Int("capture.precision", s.precision),
	))
	defer span.End()

	if explicit && !last.Valid() {
		s.metrics.RecordSessionEnded(ctx, outcomeFailed, 0)
		span.SetStatus(codes.Error, "result not captured")
		return nil, ErrNotCaptured
	}
	if len(s.steps) == 0 {
		s.metrics.RecordSessionEnded(ctx, outcomeEmpty, 0)
		span.SetStatus(codes.Error, "empty ledger")
		return nil, ErrEmptyLedger
	}

	lines, err := s.reconstruct(ctx, last)
	if err != nil {
		s.metrics.RecordSessionEnded(ctx, outcomeFailed, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconstruction failed")
		s.logger.Error(ctx, "derivation reconstruction failed", zap.Error(err))
		return nil, err
	}

	s.metrics.RecordSessionEnded(ctx, outcomeDerived, len(lines))
	span.SetAttributes(attribute.Int("capture.derivation_lines", len(lines)))
	s.logger.Debug(ctx, "capture ended",
		zap.Int("steps", len(s.steps)),
		zap.Int("lines", len(lines)),
	)
	return lines, nil
}

func (s *Session) reconstruct(ctx context.Context, last expr.Token) ([]string, error) {
	_, span := s.tracer.Start(ctx, "capture.Reconstruct", trace.WithAttributes(
		attribute.Int64("capture.last_token", int64(last)),
	))
	defer span.End()

	lines, err := Reconstruct(s.steps, last)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return lines, err
}

func (s *Session) reset() {
	s.active = false
	s.precision = 0
	s.next = 1
	s.steps = nil
	s.id = ""
	s.ctx = context.Background()
}

// Active reports whether the session is recording.
func (s *Session) Active() bool { return s.active }

// Precision returns the rounding precision of the active session.
func (s *Session) Precision() int { return s.precision }

// Len returns the number of recorded steps.
func (s *Session) Len() int { return len(s.steps) }

// ID returns the session id, or "" when inactive.
func (s *Session) ID() string { return s.id }

// Context returns the context the session was started with, carrying the
// session id for log correlation. It is context.Background() when inactive.
func (s *Session) Context() context.Context { return s.ctx }

// Steps returns a copy of the ledger; step i has token i+1.
func (s *Session) Steps() []expr.Step {
	out := make([]expr.Step, len(s.steps))
	copy(out, s.steps)
	return out
}
