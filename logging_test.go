package ygggo_gamedb

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogging_FailedQueryCarriesStatementAndKind(t *testing.T) {
	logger, buf := captureLogs(slog.LevelInfo)
	db := newSQLiteDatabase(t, "world", WithLogger(logger))

	err := db.DirectExecute(context.Background(), "UPDATE creature SET spawntime = ? WHERE guid = ?", 300, 42)
	require.Error(t, err)

	var failed map[string]any
	for _, l := range logLines(t, buf) {
		if l["msg"] == "database query failed" {
			failed = l
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "world", failed["database"])
	assert.Equal(t, "UPDATE creature SET spawntime = ? WHERE guid = ?", failed["query"])
	assert.Equal(t, "[300 42]", failed["args"])
	assert.Equal(t, "error", failed["status"])
	assert.Equal(t, ErrKindSchemaStale.String(), failed["error_kind"])
	assert.NotEmpty(t, failed["hint"])
}

func TestLogging_SlowQueryWarns(t *testing.T) {
	logger, buf := captureLogs(slog.LevelInfo)
	db := newSQLiteDatabase(t, "world", WithLogger(logger))
	db.SetSlowQueryThreshold(time.Nanosecond)

	mustExec(t, db, "CREATE TABLE creature (guid INTEGER PRIMARY KEY)")

	var levels []string
	for _, l := range logLines(t, buf) {
		if l["msg"] == "slow query detected" {
			levels = append(levels, l["level"].(string))
		}
	}
	assert.Equal(t, []string{"WARN"}, levels)
}

func TestLogging_Disabled(t *testing.T) {
	logger, buf := captureLogs(slog.LevelDebug)
	db := newSQLiteDatabase(t, "world", WithLogger(logger))
	db.EnableLogging(false)

	_ = db.DirectExecute(context.Background(), "DELETE FROM nowhere")
	assert.Zero(t, buf.Len())
}
