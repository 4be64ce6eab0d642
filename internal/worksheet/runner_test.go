package worksheet

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/errprop/internal/calcerr"
	"github.com/fyrsmithlabs/errprop/internal/capture"
	"github.com/fyrsmithlabs/errprop/internal/config"
	"github.com/fyrsmithlabs/errprop/internal/logging"
	"github.com/fyrsmithlabs/errprop/internal/telemetry"
)

func parse(t *testing.T, data string) *Worksheet {
	t.Helper()
	ws, err := Parse([]byte(data), FormatYAML)
	require.NoError(t, err)
	return ws
}

func TestRunner_Derive(t *testing.T) {
	res, err := NewRunner().Derive(context.Background(), parse(t, sampleYAML))
	require.NoError(t, err)

	want := []string{"$(x + y) * 2.0$", "$(2.0 + 3.0) * 2.0$", "$5.0 * 2.0$"}
	if diff := cmp.Diff(want, res.Derivation); diff != "" {
		t.Errorf("derivation mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, ModeDerive, res.Mode)
	assert.Equal(t, 3, res.Precision)

	final := res.Final()
	assert.Equal(t, "z", final.Name)
	assert.Equal(t, "z", final.Quantity.Name())
	assert.InDelta(t, 10, final.Quantity.Value(0), 1e-12)
	assert.InDelta(t, 2*math.Sqrt(0.05), final.Quantity.Error(0), 1e-12)
}

func TestRunner_EvalMatchesDerive(t *testing.T) {
	ws := parse(t, `
quantities:
  - {name: L, values: [1.20, 1.25, 1.19], errors: [0.01, 0.01, 0.02]}
  - {name: T, values: [2.21], errors: [0.05]}
steps:
  - {name: Lbar, op: mean, args: [L]}
  - {name: T2, op: pow, args: [T, 2]}
  - {name: ratio, op: div, args: [Lbar, T2]}
  - {name: g, op: mul, args: [39.4784176, ratio]}
  - {name: spread, op: svar, args: [L]}
  - {name: root, op: sqrt, args: [spread]}
`)
	runner := NewRunner()

	eval, err := runner.Eval(context.Background(), ws)
	require.NoError(t, err)
	derive, err := runner.Derive(context.Background(), ws)
	require.NoError(t, err)

	assert.Empty(t, eval.Derivation)
	assert.NotEmpty(t, derive.Derivation)
	require.Len(t, eval.Steps, len(derive.Steps))
	for i := range eval.Steps {
		assert.Equal(t, eval.Steps[i].Name, derive.Steps[i].Name)
		assert.Equal(t, eval.Steps[i].Quantity.Values(), derive.Steps[i].Quantity.Values())
		assert.Equal(t, eval.Steps[i].Quantity.Errors(), derive.Steps[i].Quantity.Errors())
	}
	assert.Zero(t, eval.Final().Quantity.Token())
	assert.Equal(t, config.DefaultPrecision, derive.Precision)
}

func TestRunner_OperandForms(t *testing.T) {
	ws := parse(t, `
quantities:
  - {name: x, values: [2.0, 4.0], errors: [0.1, 0.2]}
steps:
  - {name: a, op: sub, args: [10, x]}
  - {name: b, op: div, args: [x, 4]}
  - {name: c, op: pow, args: [2, b]}
  - {name: d, op: log, args: [c]}
  - {name: e, op: abs, args: [d]}
`)
	res, err := NewRunner().Eval(context.Background(), ws)
	require.NoError(t, err)

	values := make(map[string][]float64)
	for _, b := range res.Steps {
		values[b.Name] = b.Quantity.Values()
	}
	assert.Equal(t, []float64{8, 6}, values["a"])
	assert.Equal(t, []float64{0.5, 1}, values["b"])
	assert.InDeltaSlice(t, []float64{math.Sqrt2, 2}, values["c"], 1e-12)
	assert.InDeltaSlice(t, []float64{0.5 * math.Ln2, math.Ln2}, values["e"], 1e-12)
}

func TestRunner_Errors(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		opts      []Option
		mode      Mode
		wantClass error
	}{
		{
			name:      "division by zero",
			data:      "quantities: [{name: x, values: [1, 0]}]\nsteps: [{name: s, op: div, args: [1, x]}]",
			mode:      ModeEval,
			wantClass: calcerr.ErrDomain,
		},
		{
			name:      "length mismatch",
			data:      "quantities: [{name: x, values: [1, 2]}, {name: y, values: [1, 2, 3]}]\nsteps: [{name: s, op: add, args: [x, y]}]",
			mode:      ModeDerive,
			wantClass: calcerr.ErrValidation,
		},
		{
			name:      "non-finite input",
			data:      "quantities: [{name: x, values: [.inf]}]\nsteps: [{name: s, op: abs, args: [x]}]",
			mode:      ModeEval,
			wantClass: calcerr.ErrValidation,
		},
		{
			name:      "step limit",
			data:      "quantities: [{name: x, values: [1]}]\nsteps: [{name: s, op: add, args: [x, 1]}, {name: t, op: add, args: [s, 1]}]",
			opts:      []Option{WithMaxSteps(1)},
			mode:      ModeDerive,
			wantClass: calcerr.ErrUsage,
		},
		{
			name:      "nothing recorded",
			data:      "quantities: [{name: x, values: [1]}]\nsteps: [{name: s, op: sum, args: [x]}]",
			mode:      ModeDerive,
			wantClass: calcerr.ErrUsage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewRunner(tt.opts...).Run(context.Background(), parse(t, tt.data), tt.mode)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.wantClass), "got %v", err)
		})
	}
}

func TestRunner_DerivesTheLastStep(t *testing.T) {
	ws := parse(t, `
quantities:
  - {name: x, values: [2.0], errors: [0.1]}
  - {name: y, values: [3.0], errors: [0.2]}
  - {name: w, values: [7.0], errors: [0.3]}
steps:
  - {name: s, op: add, args: [x, y]}
  - {name: z, op: sum, args: [w]}
`)
	res, err := NewRunner().Derive(context.Background(), ws)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, capture.ErrNotCaptured), "got %v", err)
	assert.Contains(t, err.Error(), `step "z"`)

	// A single-element sum of an earlier result derives that result.
	ws.Steps[1].Args = []Arg{NameArg("s")}
	res, err = NewRunner().Derive(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, []string{"$x + y$", "$2.0 + 3.0$"}, res.Derivation)
	assert.Equal(t, "z", res.Final().Name)

	// The final step is derived even when it is not the last recorded one.
	ws.Steps = []StepSpec{
		{Name: "s", Op: "add", Args: []Arg{NameArg("x"), NameArg("y")}},
		{Name: "d", Op: "sub", Args: []Arg{NameArg("x"), NameArg("y")}},
		{Name: "z", Op: "sum", Args: []Arg{NameArg("s")}},
	}
	res, err = NewRunner().Derive(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, []string{"$x + y$", "$2.0 + 3.0$"}, res.Derivation)
}

func TestRunner_StepLimitSentinel(t *testing.T) {
	ws := parse(t, "quantities: [{name: x, values: [1]}]\nsteps: [{name: s, op: add, args: [x, 1]}, {name: t, op: add, args: [s, 1]}]")
	_, err := NewRunner(WithMaxSteps(1)).Derive(context.Background(), ws)
	assert.True(t, errors.Is(err, capture.ErrStepLimit))

	res, err := NewRunner(WithMaxSteps(1)).Eval(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, res.Final().Quantity.Values())
}

func TestRunner_PrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	runner := NewRunner(WithMetrics(NewMetrics(reg)))

	_, err := runner.Derive(context.Background(), parse(t, sampleYAML))
	require.NoError(t, err)
	_, err = runner.Eval(context.Background(), parse(t, "quantities: [{name: x, values: [0]}]\nsteps: [{name: s, op: log, args: [x]}]"))
	require.Error(t, err)

	assert.Equal(t, 1.0, gathered(t, reg, "errprop_worksheet_runs_total", map[string]string{"mode": "derive", "result": "success"}))
	assert.Equal(t, 1.0, gathered(t, reg, "errprop_worksheet_runs_total", map[string]string{"mode": "eval", "result": "error"}))
	assert.Equal(t, 1.0, gathered(t, reg, "errprop_worksheet_steps_total", map[string]string{"op": "add"}))
	assert.Equal(t, 1.0, gathered(t, reg, "errprop_worksheet_steps_total", map[string]string{"op": "mul"}))
	assert.Equal(t, 3.0, gathered(t, reg, "errprop_worksheet_derivation_lines", nil))

	path := filepath.Join(t.TempDir(), "errprop.prom")
	require.NoError(t, WriteTextfile(path, reg))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `errprop_worksheet_runs_total{mode="derive",result="success"} 1`)
	assert.Contains(t, string(content), "errprop_worksheet_run_duration_seconds_bucket")
}

// gathered returns the counter or gauge value of the series of name whose
// labels include want.
func gathered(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
				}
			}
			if !match {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("series %s%v not found", name, want)
	return 0
}

func TestRunner_Telemetry(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	runner := NewRunner(
		WithTracer(tt.Tracer(InstrumentationName)),
		WithMeter(tt.Meter(InstrumentationName)),
	)

	_, err := runner.Derive(context.Background(), parse(t, sampleYAML))
	require.NoError(t, err)

	tt.AssertSpanExists(t, "worksheet.Run")
	tt.AssertSpanExists(t, "capture.End")
	tt.AssertSpanAttribute(t, "worksheet.Run", "worksheet.mode", "derive")
	tt.AssertSpanAttribute(t, "worksheet.Run", "worksheet.derivation_lines", int64(3))
	assert.Equal(t, int64(1), tt.CounterValue(t, "errprop.propagate.operations_total", attribute.String("op", "mul")))
	assert.Equal(t, int64(2), tt.CounterValue(t, "errprop.capture.steps_total"))
}

func TestRunner_Logging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	ws, err := Load(path)
	require.NoError(t, err)

	tl := logging.NewTestLogger()
	runner := NewRunner(WithLogger(tl.Logger))
	_, err = runner.Derive(context.Background(), ws)
	require.NoError(t, err)

	tl.AssertLogged(t, zapcore.InfoLevel, "worksheet evaluated")
	tl.AssertField(t, "worksheet evaluated", "worksheet", path)
	tl.AssertField(t, "worksheet evaluated", "lines", int64(3))
	tl.AssertLogged(t, logging.TraceLevel, "step recorded")

	tl.Reset()
	ws.Steps[0].Op = "div"
	ws.Quantities[1].Values = []float64{0}
	_, err = runner.Eval(context.Background(), ws)
	require.Error(t, err)
	tl.AssertField(t, "worksheet run failed", "class", "domain")
	tl.AssertLogged(t, zapcore.DebugLevel, "worksheet run failed")
	tl.AssertNotLogged(t, zapcore.WarnLevel, "worksheet run failed")
}
