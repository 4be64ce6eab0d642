package propagate

import (
	"math"

	"github.com/fyrsmithlabs/errprop/internal/expr"
	"github.com/fyrsmithlabs/errprop/internal/quantity"
)

// Errors of independent operands combine in quadrature. Every formula below
// is the first-order propagation of σa and σb through the operation.

func addKernel(a, sa, b, sb float64) (float64, float64, error) {
	return a + b, math.Hypot(sa, sb), nil
}

func subKernel(a, sa, b, sb float64) (float64, float64, error) {
	return a - b, math.Hypot(sa, sb), nil
}

// mulKernel uses sqrt((σa·b)² + (a·σb)²), which equals |ab|·sqrt((σa/a)² + (σb/b)²)
// without dividing by zero operands.
func mulKernel(a, sa, b, sb float64) (float64, float64, error) {
	return a * b, math.Hypot(sa*b, a*sb), nil
}

func divKernel(a, sa, b, sb float64) (float64, float64, error) {
	if b == 0 {
		return 0, 0, errZeroDivisor
	}
	return a / b, math.Hypot(sa/b, a*sb/(b*b)), nil
}

// powKernel raises a to the constant p; σ = |p·a^(p-1)|·σa.
func powKernel(a, sa, p, _ float64) (float64, float64, error) {
	v := math.Pow(a, p)
	if sa == 0 {
		return v, 0, nil
	}
	return v, math.Abs(p*math.Pow(a, p-1)) * sa, nil
}

// expBaseKernel raises the constant c to a; σ = |c^a·ln c·σa|.
func expBaseKernel(c, _, a, sa float64) (float64, float64, error) {
	if c <= 0 {
		return 0, 0, errNonPositive
	}
	v := math.Pow(c, a)
	return v, math.Abs(v * math.Log(c) * sa), nil
}

// Add returns a + b.
func (e *Engine) Add(a, b quantity.Quantity) (quantity.Quantity, error) {
	return e.binary(expr.OpAdd, quantityOperand(a), quantityOperand(b), addKernel)
}

// AddScalar returns a + c.
func (e *Engine) AddScalar(a quantity.Quantity, c float64) (quantity.Quantity, error) {
	return e.withScalar(expr.OpAdd, a, c, false, addKernel)
}

// ScalarAdd returns c + a.
func (e *Engine) ScalarAdd(c float64, a quantity.Quantity) (quantity.Quantity, error) {
	return e.withScalar(expr.OpAdd, a, c, true, addKernel)
}

// Sub returns a - b.
func (e *Engine) Sub(a, b quantity.Quantity) (quantity.Quantity, error) {
	return e.binary(expr.OpSub, quantityOperand(a), quantityOperand(b), subKernel)
}

// SubScalar returns a - c.
func (e *Engine) SubScalar(a quantity.Quantity, c float64) (quantity.Quantity, error) {
	return e.withScalar(expr.OpSub, a, c, false, subKernel)
}

// ScalarSub returns c - a.
func (e *Engine) ScalarSub(c float64, a quantity.Quantity) (quantity.Quantity, error) {
	return e.withScalar(expr.OpSub, a, c, true, subKernel)
}

// Mul returns a * b.
func (e *Engine) Mul(a, b quantity.Quantity) (quantity.Quantity, error) {
	return e.binary(expr.OpMul, quantityOperand(a), quantityOperand(b), mulKernel)
}

// MulScalar returns a * c.
func (e *Engine) MulScalar(a quantity.Quantity, c float64) (quantity.Quantity, error) {
	return e.withScalar(expr.OpMul, a, c, false, mulKernel)
}

// ScalarMul returns c * a.
func (e *Engine) ScalarMul(c float64, a quantity.Quantity) (quantity.Quantity, error) {
	return e.withScalar(expr.OpMul, a, c, true, mulKernel)
}

// Div returns a / b. Any zero element of b is a domain error.
func (e *Engine) Div(a, b quantity.Quantity) (quantity.Quantity, error) {
	return e.binary(expr.OpDiv, quantityOperand(a), quantityOperand(b), divKernel)
}

// DivScalar returns a / c.
func (e *Engine) DivScalar(a quantity.Quantity, c float64) (quantity.Quantity, error) {
	return e.withScalar(expr.OpDiv, a, c, false, divKernel)
}

// ScalarDiv returns c / a.
func (e *Engine) ScalarDiv(c float64, a quantity.Quantity) (quantity.Quantity, error) {
	return e.withScalar(expr.OpDiv, a, c, true, divKernel)
}

// Pow returns a raised to the constant p. Results that are not real numbers,
// such as a negative base with a fractional exponent, are domain errors.
func (e *Engine) Pow(a quantity.Quantity, p float64) (quantity.Quantity, error) {
	return e.withScalar(expr.OpPow, a, p, false, powKernel)
}

// ScalarPow returns the positive constant c raised to a.
func (e *Engine) ScalarPow(c float64, a quantity.Quantity) (quantity.Quantity, error) {
	return e.withScalar(expr.OpPow, a, c, true, expBaseKernel)
}

// Sqrt returns a^0.5. It is recorded as a power.
func (e *Engine) Sqrt(a quantity.Quantity) (quantity.Quantity, error) {
	return e.Pow(a, 0.5)
}

// withScalar applies a binary kernel to a and the constant c. When scalarFirst
// is set, c is the left operand.
func (e *Engine) withScalar(op expr.Op, a quantity.Quantity, c float64, scalarFirst bool, kernel binaryKernel) (quantity.Quantity, error) {
	s, err := scalarOperand(op, c)
	if err != nil {
		return quantity.Quantity{}, err
	}
	if scalarFirst {
		return e.binary(op, s, quantityOperand(a), kernel)
	}
	return e.binary(op, quantityOperand(a), s, kernel)
}

// Abs returns |a|. The error is unchanged.
func (e *Engine) Abs(a quantity.Quantity) (quantity.Quantity, error) {
	return e.unary(expr.OpAbs, quantityOperand(a), func(a, sa float64) (float64, float64, error) {
		return math.Abs(a), sa, nil
	})
}

// Sin returns sin(a), a in radians.
func (e *Engine) Sin(a quantity.Quantity) (quantity.Quantity, error) {
	return e.unary(expr.OpSin, quantityOperand(a), func(a, sa float64) (float64, float64, error) {
		return math.Sin(a), math.Abs(math.Cos(a)) * sa, nil
	})
}

// Cos returns cos(a), a in radians.
func (e *Engine) Cos(a quantity.Quantity) (quantity.Quantity, error) {
	return e.unary(expr.OpCos, quantityOperand(a), func(a, sa float64) (float64, float64, error) {
		return math.Cos(a), math.Abs(math.Sin(a)) * sa, nil
	})
}

// Tan returns tan(a), a in radians.
func (e *Engine) Tan(a quantity.Quantity) (quantity.Quantity, error) {
	return e.unary(expr.OpTan, quantityOperand(a), func(a, sa float64) (float64, float64, error) {
		c := math.Cos(a)
		if c == 0 {
			return 0, 0, errNotFinite
		}
		return math.Tan(a), sa / (c * c), nil
	})
}

// Arcsin returns arcsin(a) in radians. Inputs outside [-1, 1] are domain errors.
func (e *Engine) Arcsin(a quantity.Quantity) (quantity.Quantity, error) {
	return e.unary(expr.OpArcsin, quantityOperand(a), func(a, sa float64) (float64, float64, error) {
		s, err := inverseSineError(a, sa)
		if err != nil {
			return 0, 0, err
		}
		return math.Asin(a), s, nil
	})
}

// Arccos returns arccos(a) in radians. Inputs outside [-1, 1] are domain errors.
func (e *Engine) Arccos(a quantity.Quantity) (quantity.Quantity, error) {
	return e.unary(expr.OpArccos, quantityOperand(a), func(a, sa float64) (float64, float64, error) {
		s, err := inverseSineError(a, sa)
		if err != nil {
			return 0, 0, err
		}
		return math.Acos(a), s, nil
	})
}

// inverseSineError is σ/sqrt(1-a²), shared by arcsin and arccos. At ±1 the
// slope is infinite, so only exact inputs are accepted there.
func inverseSineError(a, sa float64) (float64, error) {
	switch {
	case math.Abs(a) > 1:
		return 0, errOutsideDomain
	case math.Abs(a) == 1 && sa > 0:
		return 0, errInfiniteSlope
	case math.Abs(a) == 1:
		return 0, nil
	}
	return sa / math.Sqrt(1-a*a), nil
}

// Arctan returns arctan(a) in radians.
func (e *Engine) Arctan(a quantity.Quantity) (quantity.Quantity, error) {
	return e.unary(expr.OpArctan, quantityOperand(a), func(a, sa float64) (float64, float64, error) {
		return math.Atan(a), sa / (1 + a*a), nil
	})
}

// Exp returns e^a.
func (e *Engine) Exp(a quantity.Quantity) (quantity.Quantity, error) {
	return e.unary(expr.OpExp, quantityOperand(a), func(a, sa float64) (float64, float64, error) {
		v := math.Exp(a)
		return v, v * sa, nil
	})
}

// Log returns the natural logarithm of a. Non-positive inputs are domain errors.
func (e *Engine) Log(a quantity.Quantity) (quantity.Quantity, error) {
	return e.unary(expr.OpLog, quantityOperand(a), func(a, sa float64) (float64, float64, error) {
		if a <= 0 {
			return 0, 0, errNonPositive
		}
		return math.Log(a), sa / a, nil
	})
}
