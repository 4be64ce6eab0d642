package expr

// Node is an expression tree node: Leaf, Placeholder or Apply.
type Node interface {
	isNode()
}

// Leaf is rendered verbatim (a name or a number).
type Leaf struct {
	Text string
}

// Placeholder stands for the expression recorded under Token.
type Placeholder struct {
	Token Token
}

// Apply is an operation applied to its argument subtrees.
type Apply struct {
	Op   Op
	Args []Node
}

func (Leaf) isNode()        {}
func (Placeholder) isNode() {}
func (Apply) isNode()       {}

// FirstPlaceholder returns the leftmost placeholder of n in pre-order.
// This is the placeholder whose @n# text would appear first in Render(n).
func FirstPlaceholder(n Node) (Token, bool) {
	switch v := n.(type) {
	case Placeholder:
		return v.Token, true
	case Apply:
		for _, arg := range v.Args {
			if tok, ok := FirstPlaceholder(arg); ok {
				return tok, true
			}
		}
	}
	return 0, false
}

// Placeholders returns every placeholder token of n, left to right, with repeats.
func Placeholders(n Node) []Token {
	var out []Token
	walk(n, func(tok Token) { out = append(out, tok) })
	return out
}

func walk(n Node, fn func(Token)) {
	switch v := n.(type) {
	case Placeholder:
		fn(v.Token)
	case Apply:
		for _, arg := range v.Args {
			walk(arg, fn)
		}
	}
}

// Substitute returns a copy of n with every placeholder for tok replaced by with.
// n itself is never modified.
func Substitute(n Node, tok Token, with Node) Node {
	switch v := n.(type) {
	case Placeholder:
		if v.Token == tok {
			return with
		}
		return v
	case Apply:
		args := make([]Node, len(v.Args))
		for i, arg := range v.Args {
			args[i] = Substitute(arg, tok, with)
		}
		return Apply{Op: v.Op, Args: args}
	default:
		return n
	}
}
