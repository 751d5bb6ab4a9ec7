package ygggo_gamedb

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	mysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
)

// ErrorKind is the driver-independent classification of a database error.
type ErrorKind int

const (
	ErrKindGeneric ErrorKind = iota
	ErrKindConnectionFailure
	ErrKindUnknownDatabase
	ErrKindSchemaStale
	ErrKindSyntax
	ErrKindDeadlock
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindConnectionFailure:
		return "connection_failure"
	case ErrKindUnknownDatabase:
		return "unknown_database"
	case ErrKindSchemaStale:
		return "schema_stale"
	case ErrKindSyntax:
		return "syntax_error"
	case ErrKindDeadlock:
		return "deadlock"
	default:
		return "driver_error"
	}
}

var (
	// ErrStatementNotPrepared is returned when a statement id was never registered.
	ErrStatementNotPrepared = errors.New("statement not prepared")
	// ErrParameterMismatch is returned when bound parameters do not cover every placeholder.
	ErrParameterMismatch = errors.New("bound parameters do not match placeholders")
	// ErrWorkerStopped resolves operations that were still queued when the worker stopped.
	ErrWorkerStopped = errors.New("database worker stopped")
	// ErrDatabaseClosed is returned by calls made after Close.
	ErrDatabaseClosed = errors.New("database closed")
)

// MySQL server error numbers used by the classifier.
const (
	mysqlErrAccessDenied   = 1045
	mysqlErrBadDB          = 1049
	mysqlErrBadField       = 1054
	mysqlErrParse          = 1064
	mysqlErrNoSuchTable    = 1146
	mysqlErrLockDeadlock   = 1213
	mysqlErrTooManyConns   = 1040
	mysqlErrServerShutdown = 1053
)

// QueryError carries the offending statement and its bound values.
type QueryError struct {
	Kind      ErrorKind
	Statement string
	Args      []any
	Err       error
}

func (e *QueryError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v (statement: %s)", e.Kind, e.Err, e.Statement)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Hint returns operator guidance for kinds that have one.
func (e *QueryError) Hint() string {
	if e.Kind == ErrKindSchemaStale {
		return "your database schema is out of date, re-run the updater"
	}
	return ""
}

func newQueryError(err error, statement string, args []any) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Kind: Classify(err), Statement: statement, Args: args, Err: err}
}

// Classify maps driver specific errors onto ErrorKind. It is the only place
// that knows about driver error types.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrKindGeneric
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrLockDeadlock:
			return ErrKindDeadlock
		case mysqlErrBadDB:
			return ErrKindUnknownDatabase
		case mysqlErrBadField, mysqlErrNoSuchTable:
			return ErrKindSchemaStale
		case mysqlErrParse:
			return ErrKindSyntax
		case mysqlErrAccessDenied, mysqlErrTooManyConns, mysqlErrServerShutdown:
			return ErrKindConnectionFailure
		}
		return ErrKindGeneric
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch {
		case pe.Code == "40P01":
			return ErrKindDeadlock
		case pe.Code == "3D000":
			return ErrKindUnknownDatabase
		case pe.Code == "42703" || pe.Code == "42P01":
			return ErrKindSchemaStale
		case pe.Code == "42601":
			return ErrKindSyntax
		case strings.HasPrefix(pe.Code, "08") || pe.Code == "28P01" || pe.Code == "28000":
			return ErrKindConnectionFailure
		}
		return ErrKindGeneric
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case 6: // SQLITE_LOCKED
			return ErrKindDeadlock
		case 14: // SQLITE_CANTOPEN
			return ErrKindConnectionFailure
		}
		return classifyMessage(se.Error())
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return ErrKindConnectionFailure
	}
	// context.DeadlineExceeded also satisfies net.Error.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrKindGeneric
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ErrKindConnectionFailure
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) ErrorKind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "no such table"), strings.Contains(m, "no such column"):
		return ErrKindSchemaStale
	case strings.Contains(m, "syntax error"):
		return ErrKindSyntax
	case strings.Contains(m, "deadlock"):
		return ErrKindDeadlock
	}
	return ErrKindGeneric
}

// IsDeadlock reports whether err is a deadlock reported by the server.
func IsDeadlock(err error) bool { return Classify(err) == ErrKindDeadlock }
