// Package capture records the steps of a calculation and rebuilds them into a
// worked derivation.
//
// A Session is an explicit ledger. While it is active, every operation handed
// to Record is rendered (see package expr) and stored under a new Token.
// Tokens start at 1 and are never reused within a session. End rebuilds the
// derivation of the last recorded step and resets the session:
//
//	s := capture.NewSession()
//	if err := s.Start(ctx, 4); err != nil {
//	    return err
//	}
//	sum, _ := s.Record(expr.OpAdd, expr.Symbol{Name: "x", Value: 2}, expr.Symbol{Name: "y", Value: 3})
//	_ = sum
//	lines, err := s.End(ctx)
//	// lines: ["$x + y$", "$2.0 + 3.0$"]
//
// Lines run from the fully symbolic expression to the fully numeric one. Each
// line in between replaces one more intermediate result by its numeric form.
//
// Sessions are not safe for concurrent use.
package capture
