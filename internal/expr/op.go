package expr

import (
	"strings"

	"github.com/fyrsmithlabs/errprop/internal/calcerr"
)

// Op identifies the operation a step performs.
// The string values appear in logs, metric attributes and worksheet files; do not rename.
type Op string

const (
	OpAdd    Op = "add"
	OpSub    Op = "sub"
	OpMul    Op = "mul"
	OpDiv    Op = "div"
	OpPow    Op = "pow"
	OpExp    Op = "exp"
	OpLog    Op = "log"
	OpAbs    Op = "abs"
	OpSin    Op = "sin"
	OpCos    Op = "cos"
	OpTan    Op = "tan"
	OpArcsin Op = "arcsin"
	OpArccos Op = "arccos"
	OpArctan Op = "arctan"
)

// Ops lists every operation in a stable order.
var Ops = []Op{
	OpAdd, OpSub, OpMul, OpDiv, OpPow,
	OpExp, OpLog, OpAbs,
	OpSin, OpCos, OpTan, OpArcsin, OpArccos, OpArctan,
}

// aliases maps operator symbols accepted in worksheets to ops.
var aliases = map[string]Op{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMul,
	"/":  OpDiv,
	"**": OpPow,
	"^":  OpPow,
	"e":  OpExp,
	"ln": OpLog,
}

// ParseOp resolves an op name ("mul") or operator symbol ("*").
func ParseOp(s string) (Op, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if op, ok := aliases[s]; ok {
		return op, nil
	}
	op := Op(s)
	if !op.Valid() {
		return "", calcerr.Validation("expr.parse", "unknown operation %q", s)
	}
	return op, nil
}

// Valid reports whether o is a known operation.
func (o Op) Valid() bool {
	return o.Arity() > 0
}

// Arity returns the number of operands o takes, or 0 for unknown ops.
func (o Op) Arity() int {
	switch o {
	case OpAdd, OpSub, OpMul, OpDiv, OpPow:
		return 2
	case OpExp, OpLog, OpAbs, OpSin, OpCos, OpTan, OpArcsin, OpArccos, OpArctan:
		return 1
	default:
		return 0
	}
}

// Binary reports whether o is written infix (a + b, a^{b}, ...).
func (o Op) Binary() bool {
	return o.Arity() == 2
}

func (o Op) String() string { return string(o) }

// macro returns the LaTeX function macro for function-style unary ops.
func (o Op) macro() (string, bool) {
	switch o {
	case OpSin, OpCos, OpTan, OpArcsin, OpArccos, OpArctan, OpLog:
		return `\` + string(o), true
	default:
		return "", false
	}
}
