package ygggo_gamedb

import (
	"context"
	"fmt"
	"strings"
)

// createDatabase creates the schema named by cfg.Database through a
// server-level connection that does not select it.
func createDatabase(ctx context.Context, cfg DatabaseConfig, telemetry bool) error {
	resolved, err := cfg.resolved()
	if err != nil {
		return err
	}
	if resolved.Database == "" {
		return fmt.Errorf("create database: empty database name")
	}

	var stmt string
	switch resolved.Driver {
	case DriverMySQL:
		stmt = "CREATE DATABASE IF NOT EXISTS " + quoteMySQLIdent(resolved.Database) +
			" DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"
	case DriverPostgres:
		stmt = "CREATE DATABASE " + quotePostgresIdent(resolved.Database)
	default:
		return fmt.Errorf("create database: driver %q creates databases on open", resolved.Driver)
	}

	factory, err := NewConnectionFactory(resolved.withoutDatabase(), telemetry)
	if err != nil {
		return err
	}
	conn, err := factory.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return newQueryError(err, stmt, nil)
	}
	return nil
}

// countTables returns the number of user tables in the selected schema.
func countTables(ctx context.Context, conn *Connection, database string) (int, error) {
	var (
		query string
		args  []any
	)
	switch conn.driver {
	case DriverSQLite:
		query = "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'"
	case DriverPostgres:
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema()"
	default:
		query = conn.DB().Rebind("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ?")
		args = []any{database}
	}
	var n int
	if err := conn.DB().GetContext(ctx, &n, query, args...); err != nil {
		return 0, newQueryError(err, query, args)
	}
	return n, nil
}

func quoteMySQLIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quotePostgresIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
