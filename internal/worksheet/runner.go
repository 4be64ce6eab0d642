package worksheet

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/errprop/internal/calcerr"
	"github.com/fyrsmithlabs/errprop/internal/capture"
	"github.com/fyrsmithlabs/errprop/internal/config"
	"github.com/fyrsmithlabs/errprop/internal/logging"
	"github.com/fyrsmithlabs/errprop/internal/propagate"
	"github.com/fyrsmithlabs/errprop/internal/quantity"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/errprop/internal/worksheet"

// Mode selects whether a run captures a derivation.
type Mode string

const (
	ModeEval   Mode = "eval"
	ModeDerive Mode = "derive"
)

// Binding is a named quantity produced by a run.
type Binding struct {
	Name     string
	Quantity quantity.Quantity
}

// Result is the outcome of one run.
type Result struct {
	Mode      Mode
	Precision int
	// Steps holds the result of every step, in order.
	Steps []Binding
	// Derivation of the last step; empty in ModeEval.
	Derivation []string
}

// Final returns the result of the last step.
func (r *Result) Final() Binding {
	return r.Steps[len(r.Steps)-1]
}

// Runner evaluates worksheets. Each run uses a fresh engine and capture
// session, so a Runner may be reused.
type Runner struct {
	logger    *logging.Logger
	tracer    trace.Tracer
	meter     metric.Meter
	metrics   *Metrics
	maxSteps  int
	precision int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for runs and the engines they create.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithTracer sets the tracer for run and capture spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithMeter sets the OTEL meter handed to engines and capture sessions.
func WithMeter(m metric.Meter) Option {
	return func(r *Runner) { r.meter = m }
}

// WithMetrics enables Prometheus run metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithMaxSteps bounds the capture ledger of derive runs.
func WithMaxSteps(n int) Option {
	return func(r *Runner) { r.maxSteps = n }
}

// WithDefaultPrecision sets the precision used when a worksheet has none.
func WithDefaultPrecision(p int) Option {
	return func(r *Runner) { r.precision = p }
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{precision: config.DefaultPrecision}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNop(r.logger)
	if r.tracer == nil {
		r.tracer = otel.Tracer(InstrumentationName)
	}
	return r
}

// Eval evaluates every step without capturing.
func (r *Runner) Eval(ctx context.Context, ws *Worksheet) (*Result, error) {
	return r.Run(ctx, ws, ModeEval)
}

// Derive evaluates every step with capture on and returns the derivation of
// the last step.
func (r *Runner) Derive(ctx context.Context, ws *Worksheet) (*Result, error) {
	return r.Run(ctx, ws, ModeDerive)
}

// Run evaluates ws in mode.
func (r *Runner) Run(ctx context.Context, ws *Worksheet, mode Mode) (*Result, error) {
	start := time.Now()
	ctx = logging.WithWorksheet(ctx, ws.Path)
	ctx, span := r.tracer.Start(ctx, "worksheet.Run", trace.WithAttributes(
		attribute.String("worksheet.mode", string(mode)),
		attribute.Int("worksheet.steps", len(ws.Steps)),
	))
	defer span.End()

	res, err := r.run(ctx, ws, mode)

	lines := 0
	if res != nil {
		lines = len(res.Derivation)
	}
	r.metrics.observeRun(mode, time.Since(start), lines, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "worksheet run failed")
		r.logger.Debug(ctx, "worksheet run failed",
			zap.String("mode", string(mode)),
			zap.String("class", calcerr.ClassName(err)),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("worksheet.derivation_lines", lines))
	r.logger.Info(ctx, "worksheet evaluated",
		zap.String("mode", string(mode)),
		zap.Int("steps", len(res.Steps)),
		zap.Int("lines", lines),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (r *Runner) run(ctx context.Context, ws *Worksheet, mode Mode) (*Result, error) {
	if err := ws.Validate(); err != nil {
		return nil, err
	}

	precision := r.precision
	if ws.Precision != nil {
		precision = *ws.Precision
	}

	session := capture.NewSession(
		capture.WithLogger(r.logger),
		capture.WithTracer(r.tracer),
		capture.WithMeter(r.meter),
		capture.WithMaxSteps(r.maxSteps),
	)
	eng := propagate.New(
		propagate.WithSession(session),
		propagate.WithLogger(r.logger),
		propagate.WithMeter(r.meter),
	)

	env := make(map[string]quantity.Quantity, len(ws.Quantities)+len(ws.Steps))
	for _, spec := range ws.Quantities {
		q, err := quantity.New(spec.Values, spec.Errors, quantity.WithName(spec.Name))
		if err != nil {
			return nil, fmt.Errorf("quantity %q: %w", spec.Name, err)
		}
		env[spec.Name] = q
	}

	if mode == ModeDerive {
		if err := eng.StartCapture(ctx, precision); err != nil {
			return nil, err
		}
	}

	res := &Result{Mode: mode, Precision: precision}
	for _, step := range ws.Steps {
		op, err := ParseOp(step.Op)
		if err != nil {
			return nil, err
		}
		out, err := apply(eng, op, step.Args, env)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}
		if out, err = out.Named(step.Name); err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}

		env[step.Name] = out
		res.Steps = append(res.Steps, Binding{Name: step.Name, Quantity: out})
		r.metrics.observeStep(op)
	}

	if mode == ModeDerive {
		final := res.Final()
		lines, err := eng.EndCaptureFrom(ctx, final.Quantity)
		if err != nil {
			return nil, fmt.Errorf("derivation of step %q: %w", final.Name, err)
		}
		res.Derivation = lines
	}
	return res, nil
}

type (
	quantityQuantity func(*propagate.Engine, quantity.Quantity, quantity.Quantity) (quantity.Quantity, error)
	quantityScalar   func(*propagate.Engine, quantity.Quantity, float64) (quantity.Quantity, error)
	scalarQuantity   func(*propagate.Engine, float64, quantity.Quantity) (quantity.Quantity, error)
	unaryForm        func(*propagate.Engine, quantity.Quantity) (quantity.Quantity, error)
)

// binaryForm holds the engine method for each operand combination of a
// binary op. A nil form is not supported.
type binaryForm struct {
	qq quantityQuantity
	qs quantityScalar
	sq scalarQuantity
}

var binaryForms = map[Op]binaryForm{
	OpAdd: {(*propagate.Engine).Add, (*propagate.Engine).AddScalar, (*propagate.Engine).ScalarAdd},
	OpSub: {(*propagate.Engine).Sub, (*propagate.Engine).SubScalar, (*propagate.Engine).ScalarSub},
	OpMul: {(*propagate.Engine).Mul, (*propagate.Engine).MulScalar, (*propagate.Engine).ScalarMul},
	OpDiv: {(*propagate.Engine).Div, (*propagate.Engine).DivScalar, (*propagate.Engine).ScalarDiv},
	OpPow: {nil, (*propagate.Engine).Pow, (*propagate.Engine).ScalarPow},
}

var unaryForms = map[Op]unaryForm{
	OpAbs:    (*propagate.Engine).Abs,
	OpSqrt:   (*propagate.Engine).Sqrt,
	OpSin:    (*propagate.Engine).Sin,
	OpCos:    (*propagate.Engine).Cos,
	OpTan:    (*propagate.Engine).Tan,
	OpArcsin: (*propagate.Engine).Arcsin,
	OpArccos: (*propagate.Engine).Arccos,
	OpArctan: (*propagate.Engine).Arctan,
	OpExp:    (*propagate.Engine).Exp,
	OpLog:    (*propagate.Engine).Log,
	OpSum:    (*propagate.Engine).Sum,
	OpMean:   (*propagate.Engine).Mean,
	OpPVar:   (*propagate.Engine).PopulationVariance,
	OpSVar:   (*propagate.Engine).SampleVariance,
}

// apply dispatches op to the engine method matching its argument kinds.
func apply(eng *propagate.Engine, op Op, args []Arg, env map[string]quantity.Quantity) (quantity.Quantity, error) {
	if len(args) != op.Arity() {
		return quantity.Quantity{}, calcerr.Validation(string(op), "takes %d argument(s), got %d", op.Arity(), len(args))
	}
	lookup := func(a Arg) (quantity.Quantity, error) {
		q, ok := env[a.Name]
		if !ok {
			return quantity.Quantity{}, calcerr.Validation(string(op), "unknown name %q", a.Name)
		}
		return q, nil
	}

	if unary, ok := unaryForms[op]; ok {
		if args[0].IsNumber {
			return quantity.Quantity{}, calcerr.Validation(string(op), "argument must be a quantity, got %s", args[0])
		}
		x, err := lookup(args[0])
		if err != nil {
			return quantity.Quantity{}, err
		}
		return unary(eng, x)
	}

	forms, ok := binaryForms[op]
	if !ok {
		return quantity.Quantity{}, calcerr.Validation(string(op), "unsupported operation")
	}
	a, b := args[0], args[1]
	switch {
	case !a.IsNumber && !b.IsNumber && forms.qq != nil:
		x, err := lookup(a)
		if err != nil {
			return quantity.Quantity{}, err
		}
		y, err := lookup(b)
		if err != nil {
			return quantity.Quantity{}, err
		}
		return forms.qq(eng, x, y)
	case !a.IsNumber && b.IsNumber:
		x, err := lookup(a)
		if err != nil {
			return quantity.Quantity{}, err
		}
		return forms.qs(eng, x, b.Number)
	case a.IsNumber && !b.IsNumber:
		y, err := lookup(b)
		if err != nil {
			return quantity.Quantity{}, err
		}
		return forms.sq(eng, a.Number, y)
	default:
		return quantity.Quantity{}, calcerr.Validation(string(op), "unsupported arguments %s, %s", a, b)
	}
}
