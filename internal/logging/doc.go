// Package logging provides structured, context-aware logging for brandflow.
//
// Logger wraps zap and adds:
//   - a Trace level below Debug
//   - stdout and OpenTelemetry outputs
//   - correlation fields taken from the context (trace_id, execution.id,
//     brand, request.id)
//   - key and pattern redaction of secrets
//   - sampling below error level
//
// Typical use:
//
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithExecutionID(ctx, exec.ID)
//	logger.Info(ctx, "stage completed", zap.String("stage", name))
package logging
