package services

import "context"

type contextKey string

const (
	cameraKey    contextKey = "camera_id"
	plateKey     contextKey = "plate"
	operatorKey  contextKey = "operator"
	requestIDKey contextKey = "request_id"
)

// WithCamera annotates context with the camera identifier.
func WithCamera(ctx context.Context, camera string) context.Context {
	if camera == "" {
		return ctx
	}
	return context.WithValue(ctx, cameraKey, camera)
}

// CameraFromContext returns the camera identifier if present.
func CameraFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cameraKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPlate annotates context with the plate being processed.
func WithPlate(ctx context.Context, plate string) context.Context {
	if plate == "" {
		return ctx
	}
	return context.WithValue(ctx, plateKey, plate)
}

// PlateFromContext returns the plate if present.
func PlateFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(plateKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOperator annotates context with the acting operator.
func WithOperator(ctx context.Context, operator string) context.Context {
	if operator == "" {
		return ctx
	}
	return context.WithValue(ctx, operatorKey, operator)
}

// OperatorFromContext returns the acting operator if present.
func OperatorFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(operatorKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
