package ygggo_gamedb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	mysql "github.com/go-sql-driver/mysql"
)

var (
	defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
)

// EnableLogging enables or disables structured logging for this database
func (db *Database) EnableLogging(enabled bool) {
	if db == nil {
		return
	}
	db.loggingEnabled = enabled
	if enabled && db.logger == nil {
		db.logger = defaultLogger
	}
}

// SetLogger sets a custom logger for this database
func (db *Database) SetLogger(logger *slog.Logger) {
	if db == nil {
		return
	}
	db.logger = logger
}

// SetSlowQueryThreshold sets the duration above which queries log at WARN.
func (db *Database) SetSlowQueryThreshold(d time.Duration) {
	if db == nil {
		return
	}
	db.slowQueryThreshold = d
}

func (db *Database) log() *slog.Logger {
	if db == nil || db.logger == nil {
		return defaultLogger
	}
	return db.logger
}

// logQuery logs one statement execution with its bound values.
func (db *Database) logQuery(ctx context.Context, operation, query string, args []any, duration time.Duration, err error) {
	if db == nil || !db.loggingEnabled {
		return
	}

	attrs := []slog.Attr{
		slog.String("database", db.name),
		slog.String("operation", operation),
		slog.String("query", query),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	}
	if len(args) > 0 {
		attrs = append(attrs, slog.String("args", fmt.Sprint(args)))
	}

	if err != nil {
		attrs = append(attrs, errorAttrs(err)...)
		db.log().LogAttrs(ctx, slog.LevelError, "database query failed", attrs...)
		return
	}
	attrs = append(attrs, slog.String("status", "success"))

	if db.slowQueryThreshold > 0 && duration > db.slowQueryThreshold {
		db.log().LogAttrs(ctx, slog.LevelWarn, "slow query detected", attrs...)
		return
	}
	db.log().LogAttrs(ctx, slog.LevelDebug, "database query executed", attrs...)
}

// logEvent logs a lifecycle event (connect, transaction, update) for this database.
func (db *Database) logEvent(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if db == nil || !db.loggingEnabled {
		return
	}
	attrs = append([]slog.Attr{slog.String("database", db.name)}, attrs...)
	db.log().LogAttrs(ctx, level, msg, attrs...)
}

func errorAttrs(err error) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "error"),
		slog.String("error", err.Error()),
		slog.String("error_kind", Classify(err).String()),
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		attrs = append(attrs, slog.Int("error_code", int(me.Number)))
	}
	var qe *QueryError
	if errors.As(err, &qe) && qe.Hint() != "" {
		attrs = append(attrs, slog.String("hint", qe.Hint()))
	}
	return attrs
}
