package ygggo_gamedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite"
)

// Connector hands out one connection per operation.
type Connector interface {
	Connect(ctx context.Context) (*Connection, error)
	DriverName() string
}

// Connection is one physical connection owned by a single operation.
// It must be closed once the operation finishes.
type Connection struct {
	db     *sqlx.DB
	owned  bool
	driver string
}

// ConnectionFactory opens a fresh connection from a DatabaseConfig on every
// Connect call. It keeps no state between calls.
type ConnectionFactory struct {
	driver    string
	dsn       string
	database  string
	telemetry bool
}

var _ Connector = (*ConnectionFactory)(nil)

// NewConnectionFactory validates cfg and builds its DSN once.
func NewConnectionFactory(cfg DatabaseConfig, telemetry bool) (*ConnectionFactory, error) {
	resolved, err := cfg.resolved()
	if err != nil {
		return nil, err
	}
	dsn, err := dsnFromConfig(resolved)
	if err != nil {
		return nil, err
	}
	return &ConnectionFactory{
		driver:    resolved.Driver,
		dsn:       dsn,
		database:  resolved.Database,
		telemetry: telemetry,
	}, nil
}

// DriverName returns the database/sql driver name.
func (f *ConnectionFactory) DriverName() string { return f.driver }

// Connect opens and pings a new single-connection handle.
func (f *ConnectionFactory) Connect(ctx context.Context) (*Connection, error) {
	var (
		db  *sql.DB
		err error
	)
	if f.telemetry {
		db, err = otelsql.Open(f.driver, f.dsn, otelsql.WithAttributes(
			attribute.String("db.system", f.driver),
			attribute.String("db.name", f.database),
		))
	} else {
		db, err = sql.Open(f.driver, f.dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", f.database, err)
	}
	return &Connection{db: sqlx.NewDb(db, f.driver), owned: true, driver: f.driver}, nil
}

// SharedConnector hands out an existing handle instead of opening one.
// Closing the returned connections does not close the handle.
type SharedConnector struct {
	db     *sqlx.DB
	driver string
}

// NewSharedConnector wraps db, e.g. a sqlmock handle in tests.
func NewSharedConnector(db *sql.DB, driverName string) *SharedConnector {
	return &SharedConnector{db: sqlx.NewDb(db, driverName), driver: driverName}
}

func (s *SharedConnector) DriverName() string { return s.driver }

func (s *SharedConnector) Connect(ctx context.Context) (*Connection, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("nil shared connector")
	}
	return &Connection{db: s.db, driver: s.driver}, nil
}

// DB returns the underlying handle.
func (c *Connection) DB() *sqlx.DB { return c.db }

// Exec executes a statement.
func (c *Connection) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c == nil || c.db == nil {
		return nil, sql.ErrConnDone
	}
	return c.db.ExecContext(ctx, query, args...)
}

// Query runs a query and buffers the full result.
func (c *Connection) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	if c == nil || c.db == nil {
		return nil, sql.ErrConnDone
	}
	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return readResultSet(rows)
}

// Ping verifies the connection is alive.
func (c *Connection) Ping(ctx context.Context) error {
	if c == nil || c.db == nil {
		return sql.ErrConnDone
	}
	return c.db.PingContext(ctx)
}

// BeginTx opens a native transaction.
func (c *Connection) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	if c == nil || c.db == nil {
		return nil, sql.ErrConnDone
	}
	return c.db.BeginTxx(ctx, nil)
}

// Close releases the connection.
func (c *Connection) Close() error {
	if c == nil || c.db == nil || !c.owned {
		return nil
	}
	return c.db.Close()
}
