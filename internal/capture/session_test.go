package capture

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/errprop/internal/calcerr"
	"github.com/fyrsmithlabs/errprop/internal/expr"
	"github.com/fyrsmithlabs/errprop/internal/logging"
	"github.com/fyrsmithlabs/errprop/internal/telemetry"
)

var (
	x = expr.Symbol{Name: "x", Value: 2.0}
	y = expr.Symbol{Name: "y", Value: 3.0}
)

func started(t *testing.T, precision int, opts ...Option) *Session {
	t.Helper()
	s := NewSession(opts...)
	require.NoError(t, s.Start(context.Background(), precision))
	return s
}

func record(t *testing.T, s *Session, op expr.Op, operands ...expr.Operand) expr.Token {
	t.Helper()
	tok, err := s.Record(op, operands...)
	require.NoError(t, err)
	return tok
}

func TestSession_SingleAddition(t *testing.T) {
	s := started(t, 4)

	tok := record(t, s, expr.OpAdd, x, y)
	assert.Equal(t, expr.Token(1), tok)

	lines, err := s.End(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"$x + y$", "$2.0 + 3.0$"}, lines); diff != "" {
		t.Errorf("derivation mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_Derivations(t *testing.T) {
	tests := []struct {
		name      string
		precision int
		record    func(t *testing.T, s *Session)
		want      []string
	}{
		{
			name:      "sum times literal",
			precision: 4,
			record: func(t *testing.T, s *Session) {
				sum := record(t, s, expr.OpAdd, x, y)
				record(t, s, expr.OpMul, expr.Ref{Token: sum, Value: 5}, expr.Literal{Value: 2})
			},
			want: []string{
				"$(x + y) * 2.0$",
				"$(2.0 + 3.0) * 2.0$",
				"$5.0 * 2.0$",
			},
		},
		{
			name:      "rounding",
			precision: 2,
			record: func(t *testing.T, s *Session) {
				q := record(t, s, expr.OpDiv, expr.Symbol{Name: "a", Value: 1.23456}, expr.Symbol{Name: "b", Value: 3})
				record(t, s, expr.OpSin, expr.Ref{Token: q, Value: 0.41152})
			},
			want: []string{
				`$\sin(\frac{a}{b})$`,
				`$\sin(\frac{1.23}{3.0})$`,
				`$\sin(0.41)$`,
			},
		},
		{
			name:      "two intermediate results",
			precision: 4,
			record: func(t *testing.T, s *Session) {
				p := record(t, s, expr.OpMul, x, y)
				q := record(t, s, expr.OpAdd, expr.Symbol{Name: "a", Value: 1}, expr.Symbol{Name: "b", Value: 4})
				record(t, s, expr.OpSub, expr.Ref{Token: p, Value: 6}, expr.Ref{Token: q, Value: 5})
			},
			want: []string{
				"$x * y - (a + b)$",
				"$x * y - (1.0 + 4.0)$",
				"$2.0 * 3.0 - (1.0 + 4.0)$",
				"$6.0 - 5.0$",
			},
		},
		{
			name:      "repeated operand",
			precision: 4,
			record: func(t *testing.T, s *Session) {
				sum := record(t, s, expr.OpAdd, x, y)
				ref := expr.Ref{Token: sum, Value: 5}
				record(t, s, expr.OpMul, ref, ref)
			},
			want: []string{
				"$(x + y) * (x + y)$",
				"$(2.0 + 3.0) * (2.0 + 3.0)$",
				"$5.0 * 5.0$",
			},
		},
		{
			name:      "power of a product",
			precision: 3,
			record: func(t *testing.T, s *Session) {
				p := record(t, s, expr.OpMul, x, expr.Literal{Value: 0.5})
				record(t, s, expr.OpPow, expr.Ref{Token: p, Value: 1}, expr.Literal{Value: 2})
			},
			want: []string{
				"$(x * 0.5)^{2.0}$",
				"$(2.0 * 0.5)^{2.0}$",
				"$1.0^{2.0}$",
			},
		},
		{
			name:      "earlier unrelated steps are ignored",
			precision: 4,
			record: func(t *testing.T, s *Session) {
				record(t, s, expr.OpCos, x)
				record(t, s, expr.OpExp, y)
			},
			want: []string{"$e^{y}$", "$e^{3.0}$"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := started(t, tt.precision)
			tt.record(t, s)

			lines, err := s.End(context.Background())
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, lines); diff != "" {
				t.Errorf("derivation mismatch (-want +got):\n%s", diff)
			}
			for _, line := range lines {
				assert.False(t, strings.ContainsAny(line, expr.ReservedChars), "token survived in %q", line)
				assert.True(t, strings.HasPrefix(line, "$") && strings.HasSuffix(line, "$"), line)
			}
		})
	}
}

func TestSession_TokensIncreaseAndLedgerIsAppendOnly(t *testing.T) {
	s := started(t, 4)

	a := record(t, s, expr.OpAdd, x, y)
	b := record(t, s, expr.OpMul, expr.Ref{Token: a, Value: 5}, y)
	c := record(t, s, expr.OpAbs, expr.Ref{Token: b, Value: 15})

	assert.Equal(t, []expr.Token{1, 2, 3}, []expr.Token{a, b, c})
	assert.Equal(t, 3, s.Len())

	steps := s.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, expr.OpAdd, steps[0].Op)
	assert.Equal(t, "@1# * y", steps[1].SymbolicText())
	assert.Equal(t, "|@2#|", steps[2].SymbolicText())

	// Steps returns a copy
	steps[0] = expr.Step{}
	assert.Equal(t, expr.OpAdd, s.Steps()[0].Op)
}

func TestSession_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewSession()

	assert.False(t, s.Active())
	assert.Empty(t, s.ID())

	_, err := s.End(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, err, calcerr.ErrUsage)

	_, err = s.Record(expr.OpAdd, x, y)
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, s.Start(ctx, 3))
	assert.True(t, s.Active())
	assert.Equal(t, 3, s.Precision())
	firstID := s.ID()
	assert.NotEmpty(t, firstID)

	err = s.Start(ctx, 3)
	assert.ErrorIs(t, err, ErrSessionActive)
	assert.ErrorIs(t, err, calcerr.ErrUsage)
	assert.True(t, s.Active(), "failed Start must not end the session")

	record(t, s, expr.OpAdd, x, y)
	_, err = s.End(ctx)
	require.NoError(t, err)

	assert.False(t, s.Active())
	assert.Zero(t, s.Len())
	assert.Empty(t, s.ID())

	_, err = s.End(ctx)
	assert.ErrorIs(t, err, ErrNoSession, "double End")

	require.NoError(t, s.Start(ctx, 4))
	assert.NotEqual(t, firstID, s.ID())
	assert.Equal(t, expr.Token(1), record(t, s, expr.OpSub, x, y), "tokens restart in a new session")
}

func TestSession_StartInvalidPrecision(t *testing.T) {
	s := NewSession()

	err := s.Start(context.Background(), -1)
	assert.ErrorIs(t, err, ErrInvalidPrecision)
	assert.ErrorIs(t, err, calcerr.ErrUsage)
	assert.False(t, s.Active())
}

func TestSession_EndEmptyLedgerResets(t *testing.T) {
	s := started(t, 4)

	lines, err := s.End(context.Background())
	assert.Nil(t, lines)
	assert.ErrorIs(t, err, ErrEmptyLedger)
	assert.False(t, s.Active())

	require.NoError(t, s.Start(context.Background(), 4))
}

func TestSession_EndFrom(t *testing.T) {
	s := started(t, 4)
	sum := record(t, s, expr.OpAdd, x, y)
	record(t, s, expr.OpSub, x, y)

	lines, err := s.EndFrom(context.Background(), sum)
	require.NoError(t, err)
	assert.Equal(t, []string{"$x + y$", "$2.0 + 3.0$"}, lines)
	assert.False(t, s.Active())

	tests := []struct {
		name    string
		record  bool
		tok     expr.Token
		wantErr error
	}{
		{"zero token", true, 0, ErrNotCaptured},
		{"zero token on empty ledger", false, 0, ErrNotCaptured},
		{"unknown token", true, 5, ErrUnknownToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := started(t, 4)
			if tt.record {
				record(t, s, expr.OpAdd, x, y)
			}
			lines, err := s.EndFrom(context.Background(), tt.tok)
			assert.Nil(t, lines)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, calcerr.ErrUsage)
			assert.False(t, s.Active())
		})
	}

	_, err = NewSession().EndFrom(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSession_RecordFailuresDoNotConsumeTokens(t *testing.T) {
	s := started(t, 4)

	_, err := s.Record(expr.OpAdd, x)
	assert.True(t, errors.Is(err, calcerr.ErrValidation))

	_, err = s.Record(expr.OpAbs, expr.Ref{Token: 1, Value: 2})
	assert.ErrorIs(t, err, ErrUnknownToken)

	assert.Zero(t, s.Len())
	assert.Equal(t, expr.Token(1), record(t, s, expr.OpAdd, x, y))
}

func TestSession_MaxSteps(t *testing.T) {
	s := started(t, 4, WithMaxSteps(2))

	record(t, s, expr.OpAdd, x, y)
	record(t, s, expr.OpSub, x, y)

	_, err := s.Record(expr.OpMul, x, y)
	assert.ErrorIs(t, err, ErrStepLimit)
	assert.ErrorIs(t, err, calcerr.ErrUsage)
	assert.Equal(t, 2, s.Len())

	lines, err := s.End(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"$x - y$", "$2.0 - 3.0$"}, lines)
}

func TestSession_Telemetry(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	s := started(t, 4,
		WithTracer(tt.Tracer(InstrumentationName)),
		WithMeter(tt.Meter(InstrumentationName)),
	)
	id := s.ID()

	sum := record(t, s, expr.OpAdd, x, y)
	record(t, s, expr.OpMul, expr.Ref{Token: sum, Value: 5}, expr.Literal{Value: 2})
	_, err := s.End(context.Background())
	require.NoError(t, err)

	tt.AssertSpanExists(t, "capture.End")
	tt.AssertSpanExists(t, "capture.Reconstruct")
	tt.AssertSpanAttribute(t, "capture.End", "capture.session_id", id)
	tt.AssertSpanAttribute(t, "capture.End", "capture.steps", int64(2))
	tt.AssertSpanAttribute(t, "capture.End", "capture.derivation_lines", int64(3))
	tt.AssertSpanAttribute(t, "capture.Reconstruct", "capture.last_token", int64(2))

	assert.Equal(t, int64(2), tt.CounterValue(t, "errprop.capture.steps_total"))
	assert.Equal(t, int64(1), tt.CounterValue(t, "errprop.capture.steps_total", attribute.String("op", "mul")))
	assert.Equal(t, int64(1), tt.CounterValue(t, "errprop.capture.sessions_total", attribute.String("outcome", outcomeDerived)))
	assert.Equal(t, uint64(1), tt.HistogramCount(t, "errprop.capture.derivation_lines"))

	require.NoError(t, s.Start(context.Background(), 4))
	_, err = s.End(context.Background())
	require.ErrorIs(t, err, ErrEmptyLedger)
	assert.Equal(t, int64(1), tt.CounterValue(t, "errprop.capture.sessions_total", attribute.String("outcome", outcomeEmpty)))
	assert.Equal(t, uint64(1), tt.HistogramCount(t, "errprop.capture.derivation_lines"))
}

func TestSession_Logging(t *testing.T) {
	tl := logging.NewTestLogger()
	s := started(t, 2, WithLogger(tl.Logger))
	id := s.ID()

	assert.Equal(t, id, logging.SessionIDFromContext(s.Context()))

	record(t, s, expr.OpAdd, x, y)
	_, err := s.End(context.Background())
	require.NoError(t, err)

	tl.AssertLogged(t, zapcore.DebugLevel, "capture started")
	tl.AssertField(t, "capture started", "session.id", id)
	tl.AssertField(t, "capture started", "precision", int64(2))
	tl.AssertField(t, "capture ended", "session.id", id)
	tl.AssertField(t, "capture ended", "lines", int64(2))
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "")
}
