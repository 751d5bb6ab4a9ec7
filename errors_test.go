package ygggo_gamedb

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	mysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassify_MySQL(t *testing.T) {
	cases := map[uint16]ErrorKind{
		1213: ErrKindDeadlock,
		1049: ErrKindUnknownDatabase,
		1054: ErrKindSchemaStale,
		1146: ErrKindSchemaStale,
		1064: ErrKindSyntax,
		1045: ErrKindConnectionFailure,
		1062: ErrKindGeneric,
	}
	for num, want := range cases {
		err := fmt.Errorf("wrapped: %w", &mysql.MySQLError{Number: num, Message: "x"})
		assert.Equal(t, want, Classify(err), "mysql %d", num)
	}
}

func TestClassify_Postgres(t *testing.T) {
	cases := map[string]ErrorKind{
		"40P01": ErrKindDeadlock,
		"3D000": ErrKindUnknownDatabase,
		"42P01": ErrKindSchemaStale,
		"42703": ErrKindSchemaStale,
		"42601": ErrKindSyntax,
		"08006": ErrKindConnectionFailure,
		"23505": ErrKindGeneric,
	}
	for code, want := range cases {
		assert.Equal(t, want, Classify(&pgconn.PgError{Code: code}), "sqlstate %s", code)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify_Transport(t *testing.T) {
	assert.Equal(t, ErrKindGeneric, Classify(nil))
	assert.Equal(t, ErrKindConnectionFailure, Classify(driver.ErrBadConn))
	assert.Equal(t, ErrKindConnectionFailure, Classify(mysql.ErrInvalidConn))
	assert.Equal(t, ErrKindConnectionFailure, Classify(&net.OpError{Op: "dial", Err: timeoutErr{}}))
	assert.Equal(t, ErrKindGeneric, Classify(context.DeadlineExceeded))
	assert.Equal(t, ErrKindGeneric, Classify(context.Canceled))
}

func TestClassify_Messages(t *testing.T) {
	assert.Equal(t, ErrKindSchemaStale, Classify(errors.New("SQL logic error: no such table: characters (1)")))
	assert.Equal(t, ErrKindSyntax, Classify(errors.New(`near "SELEC": syntax error`)))
	assert.Equal(t, ErrKindDeadlock, Classify(errors.New("Deadlock found when trying to get lock")))
	assert.Equal(t, ErrKindGeneric, Classify(errors.New("boom")))
}

func TestQueryError(t *testing.T) {
	cause := &mysql.MySQLError{Number: 1054, Message: "Unknown column 'money'"}
	err := newQueryError(cause, "SELECT money FROM characters WHERE guid = ?", []any{1})

	var qe *QueryError
	assert.True(t, errors.As(err, &qe))
	assert.Equal(t, ErrKindSchemaStale, qe.Kind)
	assert.NotEmpty(t, qe.Hint())
	assert.Contains(t, err.Error(), "SELECT money")
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, ErrKindSchemaStale, Classify(err))

	// wrapping twice keeps the first statement
	assert.Same(t, err, newQueryError(err, "other", nil))
	assert.Nil(t, newQueryError(nil, "x", nil))

	assert.True(t, IsDeadlock(newQueryError(&mysql.MySQLError{Number: 1213}, "UPDATE", nil)))
	assert.Empty(t, (&QueryError{Kind: ErrKindDeadlock}).Hint())
}
