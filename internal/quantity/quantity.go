// Package quantity defines Quantity, a vector of measured values with their
// absolute uncertainties.
package quantity

import (
	"fmt"
	"iter"
	"math"
	"strings"

	"github.com/fyrsmithlabs/errprop/internal/calcerr"
	"github.com/fyrsmithlabs/errprop/internal/expr"
)

// Quantity holds values[i] ± errors[i] for i < Len(). Errors are stored as
// absolute values.
//
// Quantity values are immutable apart from Set, and Set copies before
// writing, so copies of a Quantity never observe each other's changes.
type Quantity struct {
	values []float64
	errors []float64
	name   string
	token  expr.Token
	origin string
}

// Option configures New and Scalar.
type Option func(*Quantity)

// WithName sets the symbol a quantity is displayed as in captured derivations.
func WithName(name string) Option {
	return func(q *Quantity) { q.name = name }
}

// New creates a quantity. An empty errors slice means every error is zero.
// Both slices are copied.
func New(values, errors []float64, opts ...Option) (Quantity, error) {
	if len(values) == 0 {
		return Quantity{}, calcerr.Validation("quantity.new", "values must not be empty")
	}
	if len(errors) == 0 {
		errors = make([]float64, len(values))
	}
	if len(values) != len(errors) {
		return Quantity{}, calcerr.Validation("quantity.new", "values and errors must have the same length (%d != %d)", len(values), len(errors))
	}

	q := Quantity{
		values: make([]float64, len(values)),
		errors: make([]float64, len(errors)),
	}
	for i := range values {
		if !finite(values[i]) || !finite(errors[i]) {
			return Quantity{}, calcerr.Validation("quantity.new", "element %d is not finite (%v ± %v)", i, values[i], errors[i])
		}
		q.values[i] = values[i]
		q.errors[i] = math.Abs(errors[i])
	}

	for _, opt := range opts {
		opt(&q)
	}
	if q.name != "" && !expr.ValidName(q.name) {
		return Quantity{}, calcerr.Validation("quantity.new", "name %q must not contain %q", q.name, expr.ReservedChars)
	}
	return q, nil
}

// Scalar creates a single-element quantity.
func Scalar(value, err float64, opts ...Option) (Quantity, error) {
	return New([]float64{value}, []float64{err}, opts...)
}

// MustScalar is Scalar for constant inputs; it panics on invalid input.
func MustScalar(value, err float64, opts ...Option) Quantity {
	q, e := Scalar(value, err, opts...)
	if e != nil {
		panic(e)
	}
	return q
}

// Len returns the number of elements.
func (q Quantity) Len() int { return len(q.values) }

// Value returns element i's value. It panics if i is out of range.
func (q Quantity) Value(i int) float64 { return q.values[i] }

// Error returns element i's absolute error. It panics if i is out of range.
func (q Quantity) Error(i int) float64 { return q.errors[i] }

// Values returns a copy of the values.
func (q Quantity) Values() []float64 { return append([]float64(nil), q.values...) }

// Errors returns a copy of the errors.
func (q Quantity) Errors() []float64 { return append([]float64(nil), q.errors...) }

// Name returns the display symbol, or "".
func (q Quantity) Name() string { return q.name }

// Token returns the capture token of the step that produced q, or 0.
func (q Quantity) Token() expr.Token { return q.token }

// Origin returns the id of the capture session that issued Token, or "".
func (q Quantity) Origin() string { return q.origin }

// WithToken returns a copy of q tagged with tok from the capture session
// origin. The propagation engine tags results recorded during a session.
func (q Quantity) WithToken(tok expr.Token, origin string) Quantity {
	q.token = tok
	q.origin = origin
	return q
}

// Named returns a copy of q displayed as name.
func (q Quantity) Named(name string) (Quantity, error) {
	if name != "" && !expr.ValidName(name) {
		return Quantity{}, calcerr.Validation("quantity.name", "name %q must not contain %q", name, expr.ReservedChars)
	}
	q.name = name
	return q, nil
}

// At returns element i as a single-element quantity with q's name.
func (q Quantity) At(i int) (Quantity, error) {
	if i < 0 || i >= q.Len() {
		return Quantity{}, calcerr.Validation("quantity.at", "index %d out of range [0, %d)", i, q.Len())
	}
	return Quantity{
		values: []float64{q.values[i]},
		errors: []float64{q.errors[i]},
		name:   q.name,
	}, nil
}

// Set replaces element i with the single element of v. The capture token is
// cleared since q no longer matches the recorded step.
func (q *Quantity) Set(i int, v Quantity) error {
	if i < 0 || i >= q.Len() {
		return calcerr.Validation("quantity.set", "index %d out of range [0, %d)", i, q.Len())
	}
	if v.Len() != 1 {
		return calcerr.Validation("quantity.set", "replacement must have length 1, got %d", v.Len())
	}
	q.values = q.Values()
	q.errors = q.Errors()
	q.values[i] = v.values[0]
	q.errors[i] = v.errors[0]
	q.token = 0
	q.origin = ""
	return nil
}

// All iterates over the elements as single-element quantities.
func (q Quantity) All() iter.Seq2[int, Quantity] {
	return func(yield func(int, Quantity) bool) {
		for i := range q.values {
			elem := Quantity{values: []float64{q.values[i]}, errors: []float64{q.errors[i]}}
			if !yield(i, elem) {
				return
			}
		}
	}
}

// String renders q as [v ± e, ...] with two decimals.
func (q Quantity) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := range q.values {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%.2f ± %.2f", q.values[i], q.errors[i])
	}
	b.WriteByte(']')
	return b.String()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
