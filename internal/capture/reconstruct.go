package capture

import (
	"fmt"
	"slices"

	"github.com/fyrsmithlabs/errprop/internal/expr"
)

// Reconstruct rebuilds the derivation of last from the ledger steps, where
// steps[i] was recorded under token i+1.
//
// The result starts with the fully symbolic expression of last, in which
// every intermediate result is replaced by its own symbolic expression, and
// ends with the numeric form of last itself. Between them, intermediate
// results are turned numeric one at a time, innermost last. Every line is
// delimited by $.
func Reconstruct(steps []expr.Step, last expr.Token) ([]string, error) {
	lookup := func(tok expr.Token) (expr.Step, error) {
		if !tok.Valid() || uint64(tok) > uint64(len(steps)) {
			return expr.Step{}, fmt.Errorf("%w: %s", ErrUnknownToken, tok)
		}
		return steps[tok-1], nil
	}
	if _, err := lookup(last); err != nil {
		return nil, err
	}

	var lines []string
	tree := expr.Node(expr.Placeholder{Token: last})
	for {
		tok, ok := expr.FirstPlaceholder(tree)
		if !ok {
			lines = append(lines, delimit(expr.Render(tree)))
			break
		}
		step, err := lookup(tok)
		if err != nil {
			return nil, err
		}
		for _, ref := range expr.Placeholders(step.Symbolic) {
			if ref >= tok {
				return nil, fmt.Errorf("%w: %s references later step %s", ErrUnknownToken, tok, ref)
			}
		}

		numeric, err := resolveNumeric(expr.Substitute(tree, tok, step.Numeric), lookup)
		if err != nil {
			return nil, err
		}
		lines = append(lines, delimit(expr.Render(numeric)))

		tree = expr.Substitute(tree, tok, step.Symbolic)
	}

	slices.Reverse(lines)
	return lines, nil
}

// resolveNumeric replaces every placeholder of n with the numeric tree of its step.
func resolveNumeric(n expr.Node, lookup func(expr.Token) (expr.Step, error)) (expr.Node, error) {
	for {
		tok, ok := expr.FirstPlaceholder(n)
		if !ok {
			return n, nil
		}
		step, err := lookup(tok)
		if err != nil {
			return nil, err
		}
		if _, nested := expr.FirstPlaceholder(step.Numeric); nested {
			return nil, fmt.Errorf("%w: numeric form of %s is not fully numeric", ErrUnknownToken, tok)
		}
		n = expr.Substitute(n, tok, step.Numeric)
	}
}

func delimit(s string) string {
	return "$" + s + "$"
}
