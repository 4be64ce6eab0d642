package expr

import (
	"fmt"
	"strings"
)

// Token identifies a recorded step within one capture session.
// Tokens start at 1; the zero Token means "not recorded".
type Token uint64

// Valid reports whether t refers to a recorded step.
func (t Token) Valid() bool { return t != 0 }

// String renders the token in its display form, @n#.
func (t Token) String() string {
	return fmt.Sprintf("@%d#", uint64(t))
}

// ReservedChars are the token delimiters; they may not appear in symbol names.
const ReservedChars = "@#"

// ValidName reports whether name can be used as a Symbol.
func ValidName(name string) bool {
	return strings.TrimSpace(name) != "" && !strings.ContainsAny(name, ReservedChars)
}

// Operand describes one input of a step. It is implemented by Literal, Symbol and Ref only.
type Operand interface {
	// symbolic returns the operand's node in the symbolic tree.
	symbolic() Node
	// numericValue returns the value substituted in the numeric tree.
	numericValue() float64
}

// Literal is a bare scalar operand.
type Literal struct {
	Value float64
}

// Symbol is a named input quantity.
type Symbol struct {
	Name  string
	Value float64
}

// Ref is the result of an earlier captured step.
type Ref struct {
	Token Token
	Value float64
}

func (l Literal) symbolic() Node        { return Leaf{Text: FormatLiteral(l.Value)} }
func (l Literal) numericValue() float64 { return l.Value }

func (s Symbol) symbolic() Node        { return Leaf{Text: s.Name} }
func (s Symbol) numericValue() float64 { return s.Value }

func (r Ref) symbolic() Node        { return Placeholder{Token: r.Token} }
func (r Ref) numericValue() float64 { return r.Value }
