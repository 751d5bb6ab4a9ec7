package ygggo_gamedb

import (
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// StatementID names a prepared statement within one logical database.
type StatementID int

type statementTemplate struct {
	id           StatementID
	source       string
	native       string
	placeholders int
}

// StatementRegistry maps statement ids to SQL rewritten for the driver's
// positional placeholder syntax. All Prepare calls happen before the worker
// starts; afterwards the registry is read-only.
type StatementRegistry struct {
	bindType  int
	templates map[StatementID]*statementTemplate
}

// NewStatementRegistry returns a registry rewriting "?" for driverName.
func NewStatementRegistry(driverName string) *StatementRegistry {
	return &StatementRegistry{
		bindType:  sqlx.BindType(driverName),
		templates: make(map[StatementID]*statementTemplate),
	}
}

// Prepare registers sql under id. Each "?" outside quotes becomes the
// driver's native marker.
func (r *StatementRegistry) Prepare(id StatementID, sql string) {
	r.templates[id] = &statementTemplate{
		id:           id,
		source:       sql,
		native:       r.rebind(sql),
		placeholders: countPlaceholders(sql),
	}
}

// Len returns the number of prepared statements.
func (r *StatementRegistry) Len() int { return len(r.templates) }

// Lookup returns the rewritten SQL for id.
func (r *StatementRegistry) Lookup(id StatementID) (string, bool) {
	t, ok := r.templates[id]
	if !ok {
		return "", false
	}
	return t.native, true
}

// GetStatement returns a fresh bindable instance of id. Asking for an id that
// was never prepared is a programming error and panics.
func (r *StatementRegistry) GetStatement(id StatementID) *PreparedStatement {
	t, ok := r.templates[id]
	if !ok {
		panic(fmt.Sprintf("ygggo_gamedb: %v: statement %d", ErrStatementNotPrepared, id))
	}
	return &PreparedStatement{tmpl: t, params: make([]Param, t.placeholders)}
}

func (r *StatementRegistry) rebind(sql string) string {
	return rebind(r.bindType, sql)
}

// rebind rewrites "?" markers for bindType, leaving quoted text alone.
func rebind(bindType int, sql string) string {
	var prefix string
	switch bindType {
	case sqlx.DOLLAR:
		prefix = "$"
	case sqlx.AT:
		prefix = "@p"
	case sqlx.NAMED:
		prefix = ":arg"
	default:
		return sql
	}
	out := make([]byte, 0, len(sql)+10)
	n := 0
	scanSQL(sql, func(_ int, c byte, inCode bool) {
		if inCode && c == '?' {
			n++
			out = append(out, prefix...)
			out = strconv.AppendInt(out, int64(n), 10)
			return
		}
		out = append(out, c)
	})
	return string(out)
}

// countPlaceholders counts "?" markers that are not inside quoted text or
// comments.
func countPlaceholders(sql string) int {
	n := 0
	scanSQL(sql, func(i int, c byte, inCode bool) {
		if inCode && c == '?' {
			n++
		}
	})
	return n
}

// scanSQL walks sql calling fn for every byte; inCode is false inside string
// literals, quoted identifiers and comments.
func scanSQL(sql string, fn func(i int, c byte, inCode bool)) {
	var quote byte
	lineComment, blockComment := false, false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case lineComment:
			fn(i, c, false)
			if c == '\n' {
				lineComment = false
			}
		case blockComment:
			fn(i, c, false)
			if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				fn(i+1, '/', false)
				i++
				blockComment = false
			}
		case quote != 0:
			fn(i, c, false)
			if c == '\\' && quote != '`' && i+1 < len(sql) {
				fn(i+1, sql[i+1], false)
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			fn(i, c, false)
		case c == '#':
			lineComment = true
			fn(i, c, false)
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			lineComment = true
			fn(i, c, false)
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			blockComment = true
			fn(i, c, false)
		default:
			fn(i, c, true)
		}
	}
}
