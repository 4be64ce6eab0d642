package quantity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/errprop/internal/calcerr"
	"github.com/fyrsmithlabs/errprop/internal/expr"
)

func TestNew(t *testing.T) {
	q, err := New([]float64{1, 2, 3}, []float64{0.1, -0.2, 0.3}, WithName("d"))
	require.NoError(t, err)

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []float64{1, 2, 3}, q.Values())
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, q.Errors(), "errors are stored as absolute values")
	assert.Equal(t, "d", q.Name())
	assert.Zero(t, q.Token())
}

func TestNew_EmptyErrorsMeansZero(t *testing.T) {
	q, err := New([]float64{4, 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, q.Errors())
}

func TestNew_CopiesInputs(t *testing.T) {
	values := []float64{1, 2}
	q, err := New(values, nil)
	require.NoError(t, err)

	values[0] = 99
	assert.Equal(t, 1.0, q.Value(0))

	out := q.Values()
	out[1] = 99
	assert.Equal(t, 2.0, q.Value(1))
}

func TestNew_Validation(t *testing.T) {
	nan := []float64{math.NaN()}

	tests := []struct {
		name   string
		values []float64
		errors []float64
		opts   []Option
	}{
		{"empty values", nil, nil, nil},
		{"length mismatch", []float64{1, 2}, []float64{0.1}, nil},
		{"nan value", nan, nil, nil},
		{"nan error", []float64{1}, nan, nil},
		{"infinite value", []float64{math.Inf(-1)}, nil, nil},
		{"reserved name", []float64{1}, nil, []Option{WithName("x#1")}},
		{"blank name", []float64{1}, nil, []Option{WithName("  ")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.values, tt.errors, tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, calcerr.ErrValidation)
		})
	}
}

func TestScalar(t *testing.T) {
	q, err := Scalar(2.5, -0.1)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 2.5, q.Value(0))
	assert.Equal(t, 0.1, q.Error(0))

	assert.Panics(t, func() { MustScalar(1, 0, WithName("@")) })
	assert.Equal(t, "g", MustScalar(9.81, 0.01, WithName("g")).Name())
}

func TestAt(t *testing.T) {
	q, err := New([]float64{1, 2}, []float64{0.1, 0.2}, WithName("v"))
	require.NoError(t, err)
	q = q.WithToken(7, "s1")

	elem, err := q.At(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, elem.Values())
	assert.Equal(t, []float64{0.2}, elem.Errors())
	assert.Equal(t, "v", elem.Name())
	assert.Zero(t, elem.Token())

	for _, i := range []int{-1, 2} {
		_, err := q.At(i)
		assert.ErrorIs(t, err, calcerr.ErrValidation)
	}
}

func TestSet(t *testing.T) {
	original, err := New([]float64{1, 2}, []float64{0.1, 0.2})
	require.NoError(t, err)
	original = original.WithToken(3, "s1")

	modified := original
	require.NoError(t, modified.Set(0, MustScalar(10, 1)))

	assert.Equal(t, []float64{10, 2}, modified.Values())
	assert.Equal(t, []float64{1, 0.2}, modified.Errors())
	assert.Zero(t, modified.Token())
	assert.Empty(t, modified.Origin())

	assert.Equal(t, []float64{1, 2}, original.Values(), "Set on a copy must not affect the original")
	assert.Equal(t, expr.Token(3), original.Token())
	assert.Equal(t, "s1", original.Origin())

	pair, err := New([]float64{1, 2}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, modified.Set(0, pair), calcerr.ErrValidation)
	assert.ErrorIs(t, modified.Set(5, MustScalar(1, 0)), calcerr.ErrValidation)
}

func TestAll(t *testing.T) {
	q, err := New([]float64{1, 2, 3}, []float64{0.1, 0.2, 0.3})
	require.NoError(t, err)

	var got []float64
	for i, elem := range q.All() {
		assert.Equal(t, 1, elem.Len())
		assert.Equal(t, q.Error(i), elem.Error(0))
		got = append(got, elem.Value(0))
		if i == 1 {
			break
		}
	}
	assert.Equal(t, []float64{1, 2}, got)
}

func TestNamed(t *testing.T) {
	q := MustScalar(1, 0)

	named, err := q.Named("theta")
	require.NoError(t, err)
	assert.Equal(t, "theta", named.Name())
	assert.Empty(t, q.Name())

	_, err = q.Named("a@b")
	assert.ErrorIs(t, err, calcerr.ErrValidation)
}

func TestString(t *testing.T) {
	q, err := New([]float64{2, 3.14159}, []float64{0.1, 0.005})
	require.NoError(t, err)
	assert.Equal(t, "[2.00 ± 0.10, 3.14 ± 0.01]", q.String())
}
