package propagate

import (
	"fmt"

	"github.com/fyrsmithlabs/errprop/internal/calcerr"
	"github.com/fyrsmithlabs/errprop/internal/quantity"
)

// Sum adds the elements of a. Each addition is an ordinary operation, so
// while capturing the sum appears in the ledger as a chain of additions.
func (e *Engine) Sum(a quantity.Quantity) (quantity.Quantity, error) {
	elems, err := elements(a)
	if err != nil {
		return quantity.Quantity{}, fmt.Errorf("sum: %w", err)
	}
	if len(elems) == 1 {
		return a, nil
	}

	acc := elems[0]
	for _, el := range elems[1:] {
		if acc, err = e.Add(acc, el); err != nil {
			return quantity.Quantity{}, fmt.Errorf("sum: %w", err)
		}
	}
	return acc, nil
}

// Mean returns Sum(a) / n.
func (e *Engine) Mean(a quantity.Quantity) (quantity.Quantity, error) {
	sum, err := e.Sum(a)
	if err != nil {
		return quantity.Quantity{}, err
	}
	return e.DivScalar(sum, float64(a.Len()))
}

// PopulationVariance returns Sum((a - mean)²) / n.
func (e *Engine) PopulationVariance(a quantity.Quantity) (quantity.Quantity, error) {
	return e.variance(a, 0)
}

// SampleVariance returns Sum((a - mean)²) / (n - 1). a needs at least two elements.
func (e *Engine) SampleVariance(a quantity.Quantity) (quantity.Quantity, error) {
	if a.Len() < 2 {
		return quantity.Quantity{}, calcerr.Validation("svar", "sample variance needs at least 2 elements, got %d", a.Len())
	}
	return e.variance(a, 1)
}

func (e *Engine) variance(a quantity.Quantity, ddof int) (quantity.Quantity, error) {
	mean, err := e.Mean(a)
	if err != nil {
		return quantity.Quantity{}, err
	}
	dev, err := e.Sub(a, mean)
	if err != nil {
		return quantity.Quantity{}, err
	}
	sq, err := e.Pow(dev, 2)
	if err != nil {
		return quantity.Quantity{}, err
	}
	total, err := e.Sum(sq)
	if err != nil {
		return quantity.Quantity{}, err
	}
	return e.DivScalar(total, float64(a.Len()-ddof))
}

// elements splits a into single-element quantities. Elements of a named
// quantity x are displayed as x_{1}, x_{2}, ...
func elements(a quantity.Quantity) ([]quantity.Quantity, error) {
	if a.Len() == 0 {
		return nil, calcerr.Validation("sum", "operand is empty")
	}

	out := make([]quantity.Quantity, 0, a.Len())
	for i, el := range a.All() {
		if a.Name() != "" {
			named, err := el.Named(fmt.Sprintf("%s_{%d}", a.Name(), i+1))
			if err != nil {
				return nil, err
			}
			el = named
		}
		out = append(out, el)
	}
	return out, nil
}
