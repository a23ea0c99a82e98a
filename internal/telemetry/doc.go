// Package telemetry wires the OpenTelemetry SDK for brandflow.
//
// New builds tracer and meter providers exporting over OTLP (gRPC or
// HTTP). Initialization failures degrade to no-op providers instead of
// failing startup; Health reports the degraded state.
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	ctx, span := tel.Tracer("brandflow/workflow").Start(ctx, "stage")
//	defer span.End()
//
// Tests use NewTestTelemetry, which records spans in memory.
package telemetry
