package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across lineage.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldRunID     = "run_id"
	FieldComponent = "component"
	FieldCategory  = "category"

	// Remote calls
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldURL      = "url"
	FieldStatus   = "status"
	FieldAttempt  = "attempt"
	FieldAttempts = "attempts"
	FieldPayload  = "payload"

	// Tables and rows
	FieldDatabase = "database"
	FieldTable    = "table"
	FieldLimit    = "limit"
	FieldOffset   = "offset"
	FieldCount    = "count"
	FieldRows     = "rows"

	// Cache
	FieldCacheKey = "cache_key"
	FieldCacheDir = "cache_dir"
	FieldAge      = "age"

	// Provenance
	FieldToken     = "token"
	FieldProcessID = "process_id"
	FieldDepth     = "depth"
	FieldEdges     = "edges"
	FieldRecords   = "records"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"
)

// Context keys for propagating logging context
type contextKey string

const (
	runIDKey     contextKey = "logger_run_id"
	componentKey contextKey = "logger_component"
)

// WithRunID adds a run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, FieldRunID, runID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// FromContext returns base (or the global logger) with fields extracted from context.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
