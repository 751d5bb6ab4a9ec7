package ygggo_gamedb

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/yggai/ygggo_gamedb"
	instrumentationVersion = "v0.1.0"
)

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`
	Metrics     bool   `yaml:"metrics" env:"METRICS"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

var (
	tracer = otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion))
)

// EnableTelemetry enables or disables OpenTelemetry tracing for this database
func (db *Database) EnableTelemetry(enabled bool) {
	if db == nil {
		return
	}
	db.telemetryEnabled = enabled
}

// startSpan creates a new span with common database attributes
func (db *Database) startSpan(ctx context.Context, operation string, query string) (context.Context, trace.Span) {
	if db == nil || !db.telemetryEnabled {
		return ctx, trace.SpanFromContext(ctx)
	}

	spanName := fmt.Sprintf("ygggo_gamedb.%s", operation)
	ctx, span := tracer.Start(ctx, spanName)

	span.SetAttributes(
		attribute.String("db.system", db.connector.DriverName()),
		attribute.String("db.name", db.name),
		attribute.String("db.operation", operation),
	)
	if query != "" {
		span.SetAttributes(attribute.String("db.statement", query))
	}
	return ctx, span
}

// finishSpan completes a span with error handling
func (db *Database) finishSpan(span trace.Span, err error) {
	if db == nil || !db.telemetryEnabled {
		return
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("db.error_kind", Classify(err).String()))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
