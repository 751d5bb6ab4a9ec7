package ygggo_gamedb

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all the metric instruments
type Metrics struct {
	operationsTotal   metric.Int64Counter
	operationDuration metric.Float64Histogram
	queueDepth        metric.Int64UpDownCounter

	transactionsTotal metric.Int64Counter
	deadlockRetries   metric.Int64Counter

	updatesApplied metric.Int64Counter
}

// EnableMetrics enables or disables metrics collection for this database
func (db *Database) EnableMetrics(enabled bool) {
	if db == nil {
		return
	}
	db.metricsEnabled = enabled
	if enabled && db.metrics == nil {
		db.initMetrics()
	}
}

// SetMeterProvider sets a custom meter provider for metrics
func (db *Database) SetMeterProvider(provider metric.MeterProvider) {
	if db == nil {
		return
	}
	db.meterProvider = provider
	if db.metricsEnabled {
		db.initMetrics()
	}
}

func (db *Database) initMetrics() {
	var meter metric.Meter
	if db.meterProvider != nil {
		meter = db.meterProvider.Meter(instrumentationName)
	} else {
		meter = otel.Meter(instrumentationName)
	}

	m := &Metrics{}
	m.operationsTotal, _ = meter.Int64Counter(
		"ygggo_gamedb_operations_total",
		metric.WithDescription("Total number of operations executed by database workers"),
	)
	m.operationDuration, _ = meter.Float64Histogram(
		"ygggo_gamedb_operation_duration_seconds",
		metric.WithDescription("Duration of worker operations"),
		metric.WithUnit("s"),
	)
	m.queueDepth, _ = meter.Int64UpDownCounter(
		"ygggo_gamedb_queue_depth",
		metric.WithDescription("Operations waiting in the worker queue"),
	)
	m.transactionsTotal, _ = meter.Int64Counter(
		"ygggo_gamedb_transactions_total",
		metric.WithDescription("Total number of committed or failed transactions"),
	)
	m.deadlockRetries, _ = meter.Int64Counter(
		"ygggo_gamedb_deadlock_retries_total",
		metric.WithDescription("Transaction attempts repeated after a deadlock"),
	)
	m.updatesApplied, _ = meter.Int64Counter(
		"ygggo_gamedb_updates_applied_total",
		metric.WithDescription("Migration files applied by the schema updater"),
	)
	db.metrics = m
}

func (db *Database) metricAttrs(extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := append([]attribute.KeyValue{attribute.String("database", db.name)}, extra...)
	return metric.WithAttributes(attrs...)
}

func (db *Database) recordOperation(ctx context.Context, kind OperationKind, duration time.Duration, err error) {
	if db == nil || !db.metricsEnabled || db.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	opt := db.metricAttrs(attribute.String("operation", kind.String()), attribute.String("status", status))
	db.metrics.operationsTotal.Add(ctx, 1, opt)
	db.metrics.operationDuration.Record(ctx, duration.Seconds(), opt)
}

func (db *Database) recordQueueDepth(ctx context.Context, delta int64) {
	if db == nil || !db.metricsEnabled || db.metrics == nil {
		return
	}
	db.metrics.queueDepth.Add(ctx, delta, db.metricAttrs())
}

func (db *Database) recordTransaction(ctx context.Context, err error) {
	if db == nil || !db.metricsEnabled || db.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	db.metrics.transactionsTotal.Add(ctx, 1, db.metricAttrs(attribute.String("status", status)))
}

func (db *Database) recordDeadlockRetry(ctx context.Context) {
	if db == nil || !db.metricsEnabled || db.metrics == nil {
		return
	}
	db.metrics.deadlockRetries.Add(ctx, 1, db.metricAttrs())
}

func (db *Database) recordUpdateApplied(ctx context.Context, state FileState) {
	if db == nil || !db.metricsEnabled || db.metrics == nil {
		return
	}
	db.metrics.updatesApplied.Add(ctx, 1, db.metricAttrs(attribute.String("state", string(state))))
}
