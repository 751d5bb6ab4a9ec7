package ygggo_gamedb

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// FileState is the lifecycle state of a migration file.
type FileState string

const (
	StateReleased FileState = "RELEASED"
	StateArchived FileState = "ARCHIVED"
)

// AppliedFileEntry is one ledger row.
type AppliedFileEntry struct {
	Name      string     `db:"name"`
	Hash      string     `db:"hash"`
	State     FileState  `db:"state"`
	Timestamp ledgerTime `db:"timestamp"`
	Speed     int64      `db:"speed"`
}

type includeDirectory struct {
	Path  string    `db:"path"`
	State FileState `db:"state"`
}

// ledgerTime accepts the timestamp representations of every supported
// driver: time.Time, or text for drivers that do not parse it.
type ledgerTime struct {
	time.Time
}

func (t *ledgerTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v
	case int64:
		t.Time = time.Unix(v, 0).UTC()
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("ledger timestamp: unsupported type %T", src)
	}
	return nil
}

func (t *ledgerTime) parse(s string) error {
	for _, layout := range []string{time.DateTime, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if p, err := time.Parse(layout, s); err == nil {
			t.Time = p
			return nil
		}
	}
	return fmt.Errorf("ledger timestamp: cannot parse %q", s)
}

const (
	createLedgerTable = `CREATE TABLE IF NOT EXISTS updates (
  name VARCHAR(200) NOT NULL PRIMARY KEY,
  hash CHAR(40) NOT NULL DEFAULT '',
  state VARCHAR(8) NOT NULL DEFAULT 'RELEASED',
  timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  speed INT NOT NULL DEFAULT 0
)`
	createIncludeTable = `CREATE TABLE IF NOT EXISTS updates_include (
  path VARCHAR(200) NOT NULL PRIMARY KEY,
  state VARCHAR(8) NOT NULL DEFAULT 'RELEASED'
)`
)

// ledger reads and writes the updates and updates_include tables.
type ledger struct {
	db *sqlx.DB
}

func newLedger(conn *Connection) *ledger { return &ledger{db: conn.DB()} }

func (l *ledger) ensureTables(ctx context.Context) error {
	for _, stmt := range []string{createLedgerTable, createIncludeTable} {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return newQueryError(err, stmt, nil)
		}
	}
	return nil
}

func (l *ledger) entries(ctx context.Context) ([]AppliedFileEntry, error) {
	const query = "SELECT name, hash, state, timestamp, speed FROM updates ORDER BY name"
	var entries []AppliedFileEntry
	if err := l.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, newQueryError(err, query, nil)
	}
	return entries, nil
}

func (l *ledger) includes(ctx context.Context) ([]includeDirectory, error) {
	const query = "SELECT path, state FROM updates_include ORDER BY path"
	var dirs []includeDirectory
	if err := l.db.SelectContext(ctx, &dirs, query); err != nil {
		return nil, newQueryError(err, query, nil)
	}
	return dirs, nil
}

func (l *ledger) exec(ctx context.Context, query string, args ...any) error {
	query = l.db.Rebind(query)
	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return newQueryError(err, query, args)
	}
	return nil
}

func (l *ledger) insert(ctx context.Context, name, hash string, state FileState, speed int64) error {
	return l.exec(ctx, "INSERT INTO updates (name, hash, state, speed) VALUES (?, ?, ?, ?)",
		name, hash, string(state), speed)
}

func (l *ledger) overwrite(ctx context.Context, name, hash string, state FileState, speed int64) error {
	return l.exec(ctx, "UPDATE updates SET hash = ?, state = ?, speed = ?, timestamp = CURRENT_TIMESTAMP WHERE name = ?",
		hash, string(state), speed, name)
}

func (l *ledger) rename(ctx context.Context, from, to string) error {
	if err := l.exec(ctx, "DELETE FROM updates WHERE name = ?", to); err != nil {
		return err
	}
	return l.exec(ctx, "UPDATE updates SET name = ? WHERE name = ?", to, from)
}

func (l *ledger) updateState(ctx context.Context, name string, state FileState) error {
	return l.exec(ctx, "UPDATE updates SET state = ? WHERE name = ?", string(state), name)
}

func (l *ledger) rehash(ctx context.Context, name, hash string) error {
	return l.exec(ctx, "UPDATE updates SET hash = ? WHERE name = ?", hash, name)
}

func (l *ledger) remove(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM updates WHERE name IN (?)", names)
	if err != nil {
		return err
	}
	return l.exec(ctx, query, args...)
}

// AddInclude registers an include directory for the updater of conn's
// database. path may start with "$/" to resolve against the source root.
func AddInclude(ctx context.Context, db *Database, path string, state FileState) error {
	conn, err := db.connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	l := newLedger(conn)
	if err := l.ensureTables(ctx); err != nil {
		return err
	}
	if err := l.exec(ctx, "DELETE FROM updates_include WHERE path = ?", path); err != nil {
		return err
	}
	return l.exec(ctx, "INSERT INTO updates_include (path, state) VALUES (?, ?)", path, string(state))
}
