// Package expr builds and renders the expressions recorded for each captured
// calculation step.
//
// # Overview
//
// A step is described by an operation (Op) and its operands. Each operand is one
// of three kinds:
//
//   - Literal: a bare scalar, rendered as its number in both forms
//   - Symbol:  a named input quantity, rendered as its name symbolically
//   - Ref:     the result of an earlier captured step, identified by its Token
//
// Builder.Build turns an operation and its operands into a Step holding two
// expression trees: the symbolic tree (names, literals and placeholders for
// earlier steps) and the numeric tree (every operand replaced by its value
// rounded to the builder's precision).
//
// Trees are rendered with LaTeX templates:
//
//	add     a + b          div     \frac{a}{b}     sin  \sin(a)
//	sub     a - b          pow     a^{b}           exp  e^{a}
//	mul     a * b          abs     |a|             log  \log(a)
//
// Placeholders for earlier steps are kept as tree nodes rather than embedded
// text, so substituting one step into another never scans strings. Render shows
// a placeholder as @n# for debugging only.
//
// # Parentheses
//
// Templates themselves never add parentheses. When a compound expression ends up
// in a tighter-binding position after substitution (a sum inside a product, a
// compound power base, the right side of a difference) Render wraps it in
// parentheses so the rendered text keeps the evaluated meaning.
package expr
