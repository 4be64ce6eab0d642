// Package logging provides structured logging with OpenTelemetry integration.
//
// The package wraps Zap with:
//   - a Trace level (-2, below Debug) used for per-step capture logs
//   - dual output (stderr + OpenTelemetry logs via otelzap)
//   - automatic context fields (trace_id, span_id, session.id, worksheet)
//   - per-level sampling (errors never sampled)
//
// Create a logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithSessionID(ctx, session.ID())
//	logger.Trace(ctx, "step recorded", zap.String("op", "mul"))
//
// Configuration follows the errprop precedence: defaults, then the config
// file, then ERRPROP_LOGGING_* environment variables.
//
// Use TestLogger for assertions in tests:
//
//	tl := logging.NewTestLogger()
//	engine := propagate.New(propagate.WithLogger(tl.Logger))
//	...
//	tl.AssertLogged(t, logging.TraceLevel, "step recorded")
//
// Logger is safe for concurrent use. Child loggers (With, Named) do not
// affect their parent.
package logging
