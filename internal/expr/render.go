package expr

import (
	"strings"
)

// binding strength of a rendered node, used to decide on parentheses.
const (
	bindSum     = 1 // a + b, a - b, negative numbers
	bindProduct = 2 // a * b
	bindPower   = 3 // a^{b}, e^{a}
	bindAtom    = 4 // names, numbers, \frac{}{}, \sin(), |a|
)

// Render renders n as LaTeX math text (without $ delimiters).
func Render(n Node) string {
	var b strings.Builder
	render(&b, n)
	return b.String()
}

func render(b *strings.Builder, n Node) {
	switch v := n.(type) {
	case Leaf:
		b.WriteString(v.Text)
	case Placeholder:
		b.WriteString(v.Token.String())
	case Apply:
		renderApply(b, v)
	}
}

func renderApply(b *strings.Builder, a Apply) {
	arg := func(i int) Node {
		if i < len(a.Args) {
			return a.Args[i]
		}
		return Leaf{}
	}

	switch a.Op {
	case OpAdd:
		renderChild(b, arg(0), false)
		b.WriteString(" + ")
		renderChild(b, arg(1), isNegative(arg(1)))
	case OpSub:
		renderChild(b, arg(0), false)
		b.WriteString(" - ")
		renderChild(b, arg(1), binding(arg(1)) <= bindSum)
	case OpMul:
		renderChild(b, arg(0), binding(arg(0)) <= bindSum)
		b.WriteString(" * ")
		renderChild(b, arg(1), binding(arg(1)) <= bindSum)
	case OpDiv:
		b.WriteString(`\frac{`)
		render(b, arg(0))
		b.WriteString("}{")
		render(b, arg(1))
		b.WriteString("}")
	case OpPow:
		renderChild(b, arg(0), binding(arg(0)) <= bindPower || isQuotient(arg(0)))
		b.WriteString("^{")
		render(b, arg(1))
		b.WriteString("}")
	case OpExp:
		b.WriteString("e^{")
		render(b, arg(0))
		b.WriteString("}")
	case OpAbs:
		b.WriteString("|")
		render(b, arg(0))
		b.WriteString("|")
	default:
		macro, ok := a.Op.macro()
		if !ok {
			macro = `\operatorname{` + string(a.Op) + "}"
		}
		b.WriteString(macro)
		b.WriteString("(")
		render(b, arg(0))
		b.WriteString(")")
	}
}

func renderChild(b *strings.Builder, n Node, parens bool) {
	if parens {
		b.WriteString("(")
	}
	render(b, n)
	if parens {
		b.WriteString(")")
	}
}

// binding reports how tightly the rendered form of n holds together.
// Placeholders count as atoms: they are substituted before display.
func binding(n Node) int {
	switch v := n.(type) {
	case Leaf:
		if isNegative(v) {
			return bindSum
		}
		return bindAtom
	case Apply:
		switch v.Op {
		case OpAdd, OpSub:
			return bindSum
		case OpMul:
			return bindProduct
		case OpPow, OpExp:
			return bindPower
		}
	}
	return bindAtom
}

// isQuotient reports whether n renders as \frac{}{}, which reads ambiguously
// under an exponent.
func isQuotient(n Node) bool {
	a, ok := n.(Apply)
	return ok && a.Op == OpDiv
}

func isNegative(n Node) bool {
	leaf, ok := n.(Leaf)
	return ok && strings.HasPrefix(leaf.Text, "-")
}
