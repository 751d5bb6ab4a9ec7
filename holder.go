package ygggo_gamedb

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

type holderEntry struct {
	statement *PreparedStatement
	result    *ResultSet
	err       error
}

// QueryHolder batches several prepared queries that run back to back on one
// connection, e.g. everything needed to load a character. Results are
// addressed by the index the query was set at.
type QueryHolder struct {
	entries []holderEntry
}

// NewQueryHolder returns a holder with room for size queries.
func NewQueryHolder(size int) *QueryHolder {
	return &QueryHolder{entries: make([]holderEntry, size)}
}

// Size returns the number of slots.
func (h *QueryHolder) Size() int { return len(h.entries) }

// SetPreparedQuery stores stmt at index. It reports false when index is out
// of range.
func (h *QueryHolder) SetPreparedQuery(index int, stmt *PreparedStatement) bool {
	if index < 0 || index >= len(h.entries) {
		return false
	}
	h.entries[index] = holderEntry{statement: stmt}
	return true
}

// GetPreparedResult returns the result at index, or nil when the query failed,
// was never set or index is out of range.
func (h *QueryHolder) GetPreparedResult(index int) *ResultSet {
	if index < 0 || index >= len(h.entries) {
		return nil
	}
	return h.entries[index].result
}

// Err returns the failure of the query at index.
func (h *QueryHolder) Err(index int) error {
	if index < 0 || index >= len(h.entries) {
		return nil
	}
	return h.entries[index].err
}

// fail marks every set query as failed with err, for a holder that never ran.
func (h *QueryHolder) fail(err error) {
	for i := range h.entries {
		if h.entries[i].statement != nil {
			h.entries[i].result = nil
			h.entries[i].err = err
		}
	}
}

// execute runs every set query. A failing query does not stop the others;
// the joined failures are returned for logging and metrics.
func (h *QueryHolder) execute(ctx context.Context, db *Database, conn *Connection) error {
	var errs *multierror.Error
	for i := range h.entries {
		e := &h.entries[i]
		if e.statement == nil {
			continue
		}
		e.result, e.err = db.queryOn(ctx, conn, preparedStatement(e.statement))
		if e.err != nil {
			e.result = nil
			errs = multierror.Append(errs, e.err)
		}
	}
	return errs.ErrorOrNil()
}
