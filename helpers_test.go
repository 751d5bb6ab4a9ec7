package ygggo_gamedb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// newSQLiteDatabase returns a database backed by a file in t.TempDir(). Every
// operation opens its own connection, so an in-memory database would not
// survive between operations.
func newSQLiteDatabase(t *testing.T, name string, opts ...Option) *Database {
	t.Helper()
	cfg := DatabaseConfig{
		Driver:   DriverSQLite,
		Database: filepath.Join(t.TempDir(), name+".db"),
	}
	db, err := NewDatabase(name, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newMockDatabase returns a database whose every connection is the same
// sqlmock handle. Queries are matched exactly and in order.
func newMockDatabase(t *testing.T, opts ...Option) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	base := []Option{
		WithConnector(NewSharedConnector(sqlDB, "sqlmock")),
		WithWorkerConfig(WorkerConfig{WaitInterval: 10 * time.Millisecond, DeadlockRetries: defaultDeadlockRetries}),
	}
	db, err := NewDatabase("mock", DatabaseConfig{Driver: "sqlmock"}, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func mustExec(t *testing.T, db *Database, query string, args ...any) {
	t.Helper()
	require.NoError(t, db.DirectExecute(context.Background(), query, args...))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// waitFuture waits for f with a test timeout.
func waitFuture[T any](t *testing.T, f *Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := f.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "future never resolved")
	return v, err
}

// drain polls p until every callback finished.
func drain(t *testing.T, p *CallbackProcessor) {
	t.Helper()
	require.Eventually(t, func() bool {
		p.ProcessReady()
		return p.Len() == 0
	}, 5*time.Second, 5*time.Millisecond)
}
