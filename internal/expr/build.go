package expr

import (
	"github.com/fyrsmithlabs/errprop/internal/calcerr"
)

// Step is the rendered form of one captured operation.
type Step struct {
	Op Op
	// Symbolic references names, literals and earlier steps (as placeholders).
	Symbolic Node
	// Numeric holds only rounded operand values; it never contains placeholders.
	Numeric Node
}

// SymbolicText renders the symbolic tree, showing earlier steps as @n#.
func (s Step) SymbolicText() string { return Render(s.Symbolic) }

// NumericText renders the numeric tree.
func (s Step) NumericText() string { return Render(s.Numeric) }

// Builder renders steps. It is stateless apart from the rounding precision.
type Builder struct {
	// Precision is the number of digits kept after the decimal point in numeric
	// trees. Negative values disable rounding.
	Precision int
}

// Build renders one step of op applied to operands.
//
// Build is pure formatting: it performs no arithmetic on the operand values
// beyond rounding them for display.
func (b Builder) Build(op Op, operands ...Operand) (Step, error) {
	if !op.Valid() {
		return Step{}, calcerr.Validation("expr.build", "unknown operation %q", op)
	}
	if len(operands) != op.Arity() {
		return Step{}, calcerr.Validation("expr.build", "%s takes %d operand(s), got %d", op, op.Arity(), len(operands))
	}

	symbolic := make([]Node, len(operands))
	numeric := make([]Node, len(operands))
	for i, operand := range operands {
		if operand == nil {
			return Step{}, calcerr.Validation("expr.build", "%s operand %d is nil", op, i)
		}
		if sym, ok := operand.(Symbol); ok && !ValidName(sym.Name) {
			return Step{}, calcerr.Validation("expr.build", "invalid symbol name %q", sym.Name)
		}
		if ref, ok := operand.(Ref); ok && !ref.Token.Valid() {
			return Step{}, calcerr.Validation("expr.build", "%s operand %d references the zero token", op, i)
		}
		symbolic[i] = operand.symbolic()
		numeric[i] = Leaf{Text: FormatNumber(operand.numericValue(), b.Precision)}
	}

	return Step{
		Op:       op,
		Symbolic: Apply{Op: op, Args: symbolic},
		Numeric:  Apply{Op: op, Args: numeric},
	}, nil
}

// BuildText is Build followed by rendering both trees.
func (b Builder) BuildText(op Op, operands ...Operand) (symbolic, numeric string, err error) {
	step, err := b.Build(op, operands...)
	if err != nil {
		return "", "", err
	}
	return step.SymbolicText(), step.NumericText(), nil
}
