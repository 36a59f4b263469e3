package logging

import (
	"context"
	"log/slog"

	"gatewarden/internal/services"
)

const (
	// FieldComponent names the subsystem that emitted the line.
	FieldComponent = "component"
	// FieldCameraID identifies the camera lane.
	FieldCameraID = "camera_id"
	// FieldPlate is the normalized plate text.
	FieldPlate = "plate"
	// FieldOperator is the guard or policy that acted.
	FieldOperator = "operator"
	// FieldCorrelationID ties a line to an API request.
	FieldCorrelationID = "correlation_id"
	// FieldEventType is a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags anomalies that should stand out.
	FieldAlert = "alert"
	// FieldDecision records an approval outcome.
	FieldDecision = "decision"
)

// ContextFields extracts standard attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if camera, ok := services.CameraFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCameraID, camera))
	}
	if plate, ok := services.PlateFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPlate, plate))
	}
	if operator, ok := services.OperatorFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOperator, operator))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns logger augmented with the fields carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
