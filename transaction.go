package ygggo_gamedb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// defaultDeadlockRetries is how many times a deadlocked transaction is
// re-attempted after the first failure.
const defaultDeadlockRetries = 5

// Transaction is an ordered list of statements committed atomically by a
// worker. Build it with Append and AppendStatement, then hand it to
// CommitTransaction or one of its variants. It must not be modified after
// it was committed.
type Transaction struct {
	statements []sqlStatement
}

// NewTransaction returns an empty transaction.
func NewTransaction() *Transaction { return &Transaction{} }

// Append adds a raw SQL statement.
func (t *Transaction) Append(query string, args ...any) *Transaction {
	t.statements = append(t.statements, rawStatement(query, args))
	return t
}

// AppendStatement adds a bound prepared statement.
func (t *Transaction) AppendStatement(stmt *PreparedStatement) *Transaction {
	t.statements = append(t.statements, preparedStatement(stmt))
	return t
}

// Len returns the number of statements.
func (t *Transaction) Len() int {
	if t == nil {
		return 0
	}
	return len(t.statements)
}

func (t *Transaction) summary() string {
	if t == nil || len(t.statements) == 0 {
		return ""
	}
	parts := make([]string, 0, len(t.statements))
	for _, s := range t.statements {
		parts = append(parts, s.text())
	}
	return strings.Join(parts, "; ")
}

// executeTransaction runs every statement of t inside one native transaction.
// Any failure rolls back; the error is classified.
func (db *Database) executeTransaction(ctx context.Context, conn *Connection, t *Transaction) (err error) {
	if t.Len() == 0 {
		return nil
	}
	ctx, span := db.startSpan(ctx, "transaction_attempt", "")
	defer func() { db.finishSpan(span, unwrapPermanent(err)) }()

	tx, err := conn.BeginTx(ctx)
	if err != nil {
		return newQueryError(err, "BEGIN", nil)
	}
	finished := false
	defer func() {
		if err != nil && !finished {
			if rbErr := tx.Rollback(); rbErr != nil {
				db.logEvent(ctx, slog.LevelWarn, "transaction rollback failed", slog.String("error", rbErr.Error()))
			}
		}
	}()

	for _, s := range t.statements {
		query, args, bindErr := s.bind()
		if bindErr != nil {
			return backoff.Permanent(fmt.Errorf("%s: %w", query, bindErr))
		}
		start := time.Now()
		_, execErr := tx.ExecContext(ctx, query, args...)
		db.logQuery(ctx, "transaction", query, args, time.Since(start), execErr)
		if execErr != nil {
			return newQueryError(execErr, query, args)
		}
	}
	// a failed commit already ended the transaction
	finished = true
	if err = tx.Commit(); err != nil {
		return newQueryError(err, "COMMIT", nil)
	}
	return nil
}

// commitWithRetry commits t. A deadlock on the first attempt is retried up
// to DeadlockRetries more times while holding the deadlock lock shared by
// every database of the process, so only one worker retries at a time.
// Any other failure is returned after the first attempt.
func (db *Database) commitWithRetry(ctx context.Context, conn *Connection, t *Transaction) error {
	err := db.executeTransaction(ctx, conn, t)
	if err == nil || !IsDeadlock(err) || db.workerCfg.DeadlockRetries <= 0 {
		err = unwrapPermanent(err)
		db.recordTransaction(ctx, err)
		return err
	}

	db.deadlockMu.Lock()
	defer db.deadlockMu.Unlock()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(db.workerCfg.DeadlockBackoff), uint64(db.workerCfg.DeadlockRetries-1)),
		ctx,
	)
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		db.recordDeadlockRetry(ctx)
		db.logEvent(ctx, slog.LevelWarn, "retrying deadlocked transaction",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", db.workerCfg.DeadlockRetries))
		retryErr := db.executeTransaction(ctx, conn, t)
		if retryErr != nil && !IsDeadlock(retryErr) {
			return backoff.Permanent(retryErr)
		}
		return retryErr
	}, policy)
	err = unwrapPermanent(err)
	if err != nil {
		db.logEvent(ctx, slog.LevelError, "transaction failed after deadlock retries",
			slog.Int("attempts", attempt+1), slog.String("error", err.Error()))
	}
	db.recordTransaction(ctx, err)
	return err
}

func unwrapPermanent(err error) error {
	if p, ok := err.(*backoff.PermanentError); ok {
		return p.Err
	}
	return err
}
