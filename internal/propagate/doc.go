// Package propagate computes operations on quantities with uncertainty.
//
// Errors are propagated to first order assuming independent operands: sums
// combine absolute errors in quadrature, products and quotients combine
// relative errors in quadrature, and functions scale the error by the
// magnitude of their derivative.
//
// An Engine owns a capture session. Between StartCapture and EndCapture every
// successful operation is recorded as a step, and its result carries the
// step's token so later operations reference it:
//
//	eng := propagate.New(propagate.WithLogger(logger))
//	if err := eng.StartCapture(ctx, 4); err != nil {
//	    return err
//	}
//	s, _ := eng.Add(x, y)
//	z, _ := eng.MulScalar(s, 2)
//	lines, err := eng.EndCapture(ctx)
//	// lines[0] == "$(x + y) * 2.0$"
//
// Binary operations broadcast a single-element operand against the other
// operand. Other length mismatches are validation errors; undefined results
// are domain errors (see package calcerr).
package propagate
