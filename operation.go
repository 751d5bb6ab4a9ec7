package ygggo_gamedb

import (
	"context"

	"github.com/google/uuid"
)

// OperationKind identifies the variant of a queued Operation.
type OperationKind int

const (
	OpExecute OperationKind = iota
	OpQuery
	OpTransaction
	OpTransactionWithResult
	OpQueryHolder
	OpPing
)

func (k OperationKind) String() string {
	switch k {
	case OpExecute:
		return "execute"
	case OpQuery:
		return "query"
	case OpTransaction:
		return "transaction"
	case OpTransactionWithResult:
		return "transaction_result"
	case OpQueryHolder:
		return "query_holder"
	case OpPing:
		return "ping"
	default:
		return "unknown"
	}
}

// Operation is a unit of work executed by a database worker. Run receives a
// connection owned by the worker for the duration of the call and must
// resolve any future the operation carries. Fail resolves it for an
// operation that never ran.
type Operation interface {
	ID() uuid.UUID
	Kind() OperationKind
	Statement() string
	Run(ctx context.Context, db *Database, conn *Connection) error
	Fail(err error)
	OnComplete(fn func(error)) Operation
	completion() func(error)
}

type baseOperation struct {
	id   uuid.UUID
	sink func(error)
}

func newBaseOperation() baseOperation {
	return baseOperation{id: uuid.New()}
}

func (b *baseOperation) ID() uuid.UUID            { return b.id }
func (b *baseOperation) completion() func(error) { return b.sink }

// sqlStatement is either raw SQL with arguments or a bound prepared statement.
type sqlStatement struct {
	query string
	args  []any
	stmt  *PreparedStatement
}

func rawStatement(query string, args []any) sqlStatement {
	return sqlStatement{query: query, args: args}
}

func preparedStatement(stmt *PreparedStatement) sqlStatement {
	return sqlStatement{stmt: stmt}
}

func (s sqlStatement) text() string {
	if s.stmt != nil {
		return s.stmt.SQL()
	}
	return s.query
}

func (s sqlStatement) bind() (string, []any, error) {
	if s.stmt == nil {
		return s.query, s.args, nil
	}
	args, err := s.stmt.Args()
	if err != nil {
		return s.stmt.SQL(), nil, err
	}
	return s.stmt.SQL(), args, nil
}

// ExecuteOperation runs a statement and discards its result.
type ExecuteOperation struct {
	baseOperation
	statement sqlStatement
}

// NewExecuteOperation builds a fire-and-forget statement.
func NewExecuteOperation(query string, args ...any) *ExecuteOperation {
	return &ExecuteOperation{baseOperation: newBaseOperation(), statement: rawStatement(query, args)}
}

// NewPreparedExecuteOperation builds a fire-and-forget prepared statement.
func NewPreparedExecuteOperation(stmt *PreparedStatement) *ExecuteOperation {
	return &ExecuteOperation{baseOperation: newBaseOperation(), statement: preparedStatement(stmt)}
}

func (o *ExecuteOperation) Kind() OperationKind { return OpExecute }
func (o *ExecuteOperation) Statement() string   { return o.statement.text() }
func (o *ExecuteOperation) Fail(error)          {}

func (o *ExecuteOperation) OnComplete(fn func(error)) Operation {
	o.sink = fn
	return o
}

func (o *ExecuteOperation) Run(ctx context.Context, db *Database, conn *Connection) error {
	return db.execOn(ctx, conn, o.statement)
}

// QueryOperation runs a query and stores its buffered result in a future.
type QueryOperation struct {
	baseOperation
	statement sqlStatement
	future    *Future[*ResultSet]
}

// NewQueryOperation builds a raw SQL query.
func NewQueryOperation(query string, args ...any) *QueryOperation {
	return &QueryOperation{
		baseOperation: newBaseOperation(),
		statement:     rawStatement(query, args),
		future:        newFuture[*ResultSet](),
	}
}

// NewPreparedQueryOperation builds a prepared query.
func NewPreparedQueryOperation(stmt *PreparedStatement) *QueryOperation {
	return &QueryOperation{
		baseOperation: newBaseOperation(),
		statement:     preparedStatement(stmt),
		future:        newFuture[*ResultSet](),
	}
}

func (o *QueryOperation) Kind() OperationKind          { return OpQuery }
func (o *QueryOperation) Statement() string            { return o.statement.text() }
func (o *QueryOperation) Future() *Future[*ResultSet] { return o.future }
func (o *QueryOperation) Fail(err error)               { o.future.resolve(nil, err) }

func (o *QueryOperation) OnComplete(fn func(error)) Operation {
	o.sink = fn
	return o
}

func (o *QueryOperation) Run(ctx context.Context, db *Database, conn *Connection) error {
	res, err := db.queryOn(ctx, conn, o.statement)
	o.future.resolve(res, err)
	return err
}

// TransactionOperation commits a Transaction without reporting back.
type TransactionOperation struct {
	baseOperation
	tx *Transaction
}

// NewTransactionOperation builds a fire-and-forget commit.
func NewTransactionOperation(tx *Transaction) *TransactionOperation {
	return &TransactionOperation{baseOperation: newBaseOperation(), tx: tx}
}

func (o *TransactionOperation) Kind() OperationKind { return OpTransaction }
func (o *TransactionOperation) Statement() string   { return o.tx.summary() }
func (o *TransactionOperation) Fail(error)          {}

func (o *TransactionOperation) OnComplete(fn func(error)) Operation {
	o.sink = fn
	return o
}

func (o *TransactionOperation) Run(ctx context.Context, db *Database, conn *Connection) error {
	return db.commitWithRetry(ctx, conn, o.tx)
}

// TransactionResultOperation commits a Transaction and reports success in a
// future.
type TransactionResultOperation struct {
	baseOperation
	tx     *Transaction
	future *Future[bool]
}

// NewTransactionResultOperation builds a commit whose outcome can be awaited.
func NewTransactionResultOperation(tx *Transaction) *TransactionResultOperation {
	return &TransactionResultOperation{baseOperation: newBaseOperation(), tx: tx, future: newFuture[bool]()}
}

func (o *TransactionResultOperation) Kind() OperationKind   { return OpTransactionWithResult }
func (o *TransactionResultOperation) Statement() string     { return o.tx.summary() }
func (o *TransactionResultOperation) Future() *Future[bool] { return o.future }
func (o *TransactionResultOperation) Fail(err error)        { o.future.resolve(false, err) }

func (o *TransactionResultOperation) OnComplete(fn func(error)) Operation {
	o.sink = fn
	return o
}

func (o *TransactionResultOperation) Run(ctx context.Context, db *Database, conn *Connection) error {
	err := db.commitWithRetry(ctx, conn, o.tx)
	o.future.resolve(err == nil, err)
	return err
}

// QueryHolderOperation runs every query of a QueryHolder on one connection.
type QueryHolderOperation struct {
	baseOperation
	holder *QueryHolder
	future *Future[*QueryHolder]
}

// NewQueryHolderOperation builds a batched query load.
func NewQueryHolderOperation(holder *QueryHolder) *QueryHolderOperation {
	return &QueryHolderOperation{baseOperation: newBaseOperation(), holder: holder, future: newFuture[*QueryHolder]()}
}

func (o *QueryHolderOperation) Kind() OperationKind            { return OpQueryHolder }
func (o *QueryHolderOperation) Statement() string              { return "" }
func (o *QueryHolderOperation) Future() *Future[*QueryHolder] { return o.future }

func (o *QueryHolderOperation) Fail(err error) {
	o.holder.fail(err)
	o.future.resolve(o.holder, err)
}

func (o *QueryHolderOperation) OnComplete(fn func(error)) Operation {
	o.sink = fn
	return o
}

func (o *QueryHolderOperation) Run(ctx context.Context, db *Database, conn *Connection) error {
	err := o.holder.execute(ctx, db, conn)
	o.future.resolve(o.holder, nil)
	return err
}

// PingOperation keeps an idle server session from timing out.
type PingOperation struct {
	baseOperation
}

func NewPingOperation() *PingOperation {
	return &PingOperation{baseOperation: newBaseOperation()}
}

func (o *PingOperation) Kind() OperationKind { return OpPing }
func (o *PingOperation) Statement() string   { return "" }
func (o *PingOperation) Fail(error)          {}

func (o *PingOperation) OnComplete(fn func(error)) Operation {
	o.sink = fn
	return o
}

func (o *PingOperation) Run(ctx context.Context, _ *Database, conn *Connection) error {
	return conn.Ping(ctx)
}
