package worksheet

import (
	"strings"

	"github.com/fyrsmithlabs/errprop/internal/expr"
)

// Op is a worksheet step operation: every captured operation plus the
// composite ones the engine builds from them.
type Op string

const (
	OpAdd    = Op(expr.OpAdd)
	OpSub    = Op(expr.OpSub)
	OpMul    = Op(expr.OpMul)
	OpDiv    = Op(expr.OpDiv)
	OpPow    = Op(expr.OpPow)
	OpAbs    = Op(expr.OpAbs)
	OpSin    = Op(expr.OpSin)
	OpCos    = Op(expr.OpCos)
	OpTan    = Op(expr.OpTan)
	OpArcsin = Op(expr.OpArcsin)
	OpArccos = Op(expr.OpArccos)
	OpArctan = Op(expr.OpArctan)
	OpExp    = Op(expr.OpExp)
	OpLog    = Op(expr.OpLog)

	OpSqrt Op = "sqrt"
	OpSum  Op = "sum"
	OpMean Op = "mean"
	OpPVar Op = "pvar"
	OpSVar Op = "svar"
)

var composite = map[string]Op{
	"sqrt": OpSqrt,
	"sum":  OpSum,
	"mean": OpMean,
	"pvar": OpPVar,
	"svar": OpSVar,
}

// ParseOp resolves an operation name or operator symbol.
func ParseOp(s string) (Op, error) {
	if op, ok := composite[strings.TrimSpace(strings.ToLower(s))]; ok {
		return op, nil
	}
	op, err := expr.ParseOp(s)
	if err != nil {
		return "", err
	}
	return Op(op), nil
}

// Arity returns the number of arguments o takes.
func (o Op) Arity() int {
	if _, ok := composite[string(o)]; ok {
		return 1
	}
	return expr.Op(o).Arity()
}

func (o Op) String() string { return string(o) }
