package capture

import (
	"github.com/fyrsmithlabs/errprop/internal/calcerr"
)

// Lifecycle errors. All of them are calcerr.ErrUsage errors.
var (
	ErrSessionActive    = calcerr.Usage("capture.start", "a capture session is already active")
	ErrInvalidPrecision = calcerr.Usage("capture.start", "precision must be >= 0")
	ErrNoSession        = calcerr.Usage("capture", "no capture session is active")
	ErrEmptyLedger      = calcerr.Usage("capture.end", "no operations were captured")
	ErrStepLimit        = calcerr.Usage("capture.record", "step limit reached")
	ErrUnknownToken     = calcerr.Usage("capture", "unknown token")
	ErrNotCaptured      = calcerr.Usage("capture.end", "result was not produced by a captured operation")
)
