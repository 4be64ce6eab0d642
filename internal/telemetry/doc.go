// Package telemetry provides OpenTelemetry tracing and metrics for errprop.
//
// Create an instance from config and hand its tracer and meter to the
// packages that instrument themselves:
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	session := capture.NewSession(
//	    capture.WithTracer(tel.Tracer(capture.InstrumentationName)),
//	    capture.WithMeter(tel.Meter(capture.InstrumentationName)),
//	)
//
// Spans and metrics are exported over OTLP, gRPC by default or
// HTTP/protobuf when Protocol is "http/protobuf". Export failures degrade the
// instance instead of failing the command; see Health.
//
// Tests use NewTestTelemetry, which records spans in memory and exposes
// metric values through CounterValue and HistogramCount.
package telemetry
