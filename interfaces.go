package ygggo_gamedb

import "context"

// SyncExecutor runs work on a dedicated connection and waits for it.
type SyncExecutor interface {
	DirectExecute(ctx context.Context, query string, args ...any) error
	DirectExecuteStatement(ctx context.Context, stmt *PreparedStatement) error
	Query(ctx context.Context, query string, args ...any) (*ResultSet, error)
	QueryStatement(ctx context.Context, stmt *PreparedStatement) (*ResultSet, error)
	DirectCommitTransaction(ctx context.Context, tx *Transaction) error
}

// AsyncExecutor queues work on the database worker.
type AsyncExecutor interface {
	Execute(query string, args ...any)
	ExecuteStatement(stmt *PreparedStatement)
	AsyncQuery(query string, args ...any) *QueryCallback
	AsyncQueryStatement(stmt *PreparedStatement) *QueryCallback
	CommitTransaction(tx *Transaction)
	AsyncCommitTransaction(tx *Transaction) *TransactionCallback
	DelayQueryHolder(h *QueryHolder) *HolderCallback
	KeepAlive()
	QueueSize() int
}

var (
	_ SyncExecutor  = (*Database)(nil)
	_ AsyncExecutor = (*Database)(nil)
	_ Callback      = (*QueryCallback)(nil)
	_ Callback      = (*TransactionCallback)(nil)
	_ Callback      = (*HolderCallback)(nil)
	_ Operation     = (*ExecuteOperation)(nil)
	_ Operation     = (*QueryOperation)(nil)
	_ Operation     = (*TransactionOperation)(nil)
	_ Operation     = (*TransactionResultOperation)(nil)
	_ Operation     = (*QueryHolderOperation)(nil)
	_ Operation     = (*PingOperation)(nil)
)
