package ygggo_gamedb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Database is the facade over one logical database: a statement registry,
// a connector and a worker that executes queued operations in order.
type Database struct {
	name       string
	cfg        DatabaseConfig
	connector  Connector
	statements *StatementRegistry
	worker     *Worker
	workerCfg  WorkerConfig
	deadlockMu *sync.Mutex

	logger             *slog.Logger
	loggingEnabled     bool
	slowQueryThreshold time.Duration
	telemetryEnabled   bool
	metricsEnabled     bool
	metrics            *Metrics
	meterProvider      metric.MeterProvider

	closed atomic.Bool
}

// Option configures a Database.
type Option func(*Database)

// WithConnector replaces the connection factory built from the config.
func WithConnector(c Connector) Option {
	return func(db *Database) { db.connector = c }
}

// WithLogger enables logging through logger.
func WithLogger(logger *slog.Logger) Option {
	return func(db *Database) {
		db.logger = logger
		db.loggingEnabled = logger != nil
	}
}

// WithWorkerConfig overrides the worker tuning.
func WithWorkerConfig(wc WorkerConfig) Option {
	return func(db *Database) { db.workerCfg = wc }
}

// WithDeadlockLock shares mu with other databases so that at most one
// deadlocked transaction is retried at a time process-wide.
func WithDeadlockLock(mu *sync.Mutex) Option {
	return func(db *Database) { db.deadlockMu = mu }
}

// WithTelemetry turns on tracing and metrics.
func WithTelemetry(tc TelemetryConfig) Option {
	return func(db *Database) {
		db.telemetryEnabled = tc.Enabled
		db.metricsEnabled = tc.Metrics
	}
}

// WithMeterProvider records metrics through mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(db *Database) {
		db.meterProvider = mp
		db.metricsEnabled = true
	}
}

// NewDatabase builds the facade for the logical database name. The worker is
// not started; call Start once the database is opened and its statements are
// prepared.
func NewDatabase(name string, cfg DatabaseConfig, opts ...Option) (*Database, error) {
	db := &Database{
		name: name,
		cfg:  cfg,
		workerCfg: WorkerConfig{
			WaitInterval:    defaultWaitInterval,
			DeadlockRetries: defaultDeadlockRetries,
		},
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.connector == nil {
		f, err := NewConnectionFactory(cfg, db.telemetryEnabled)
		if err != nil {
			return nil, fmt.Errorf("database %s: %w", name, err)
		}
		db.connector = f
	}
	if db.deadlockMu == nil {
		db.deadlockMu = &sync.Mutex{}
	}
	if db.workerCfg.SlowQueryThreshold > 0 {
		db.slowQueryThreshold = db.workerCfg.SlowQueryThreshold
	}
	if db.metricsEnabled {
		db.initMetrics()
	}
	db.statements = NewStatementRegistry(db.connector.DriverName())
	db.worker = newWorker(db, db.workerCfg.WaitInterval)
	return db, nil
}

// Name returns the logical database name.
func (db *Database) Name() string { return db.name }

// Config returns the connection config the database was built from.
func (db *Database) Config() DatabaseConfig { return db.cfg }

// Connector returns the connector used for every operation.
func (db *Database) Connector() Connector { return db.connector }

// Statements returns the statement registry.
func (db *Database) Statements() *StatementRegistry { return db.statements }

// Open verifies the database is reachable.
func (db *Database) Open(ctx context.Context) error {
	if db.closed.Load() {
		return ErrDatabaseClosed
	}
	ctx, span := db.startSpan(ctx, "open", "")
	conn, err := db.connector.Connect(ctx)
	if err == nil {
		err = conn.Ping(ctx)
		_ = conn.Close()
	}
	db.finishSpan(span, err)
	if err != nil {
		db.logEvent(ctx, slog.LevelError, "database open failed", errorAttrs(err)...)
		return &QueryError{Kind: Classify(err), Err: err}
	}
	db.logEvent(ctx, slog.LevelInfo, "database opened", slog.String("driver", db.connector.DriverName()))
	return nil
}

// PrepareStatements registers the statements of this database. It must run
// before Start.
func (db *Database) PrepareStatements(fn func(r *StatementRegistry)) {
	if fn != nil {
		fn(db.statements)
	}
}

// Prepare registers a single statement.
func (db *Database) Prepare(id StatementID, sql string) { db.statements.Prepare(id, sql) }

// GetStatement returns a fresh bindable instance of id.
func (db *Database) GetStatement(id StatementID) *PreparedStatement {
	return db.statements.GetStatement(id)
}

// Start launches the worker.
func (db *Database) Start() {
	if db.closed.Load() {
		return
	}
	db.worker.Start()
}

// Close stops the worker. Operations still queued fail with ErrWorkerStopped.
func (db *Database) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	db.worker.Stop()
	db.logEvent(context.Background(), slog.LevelInfo, "database closed")
	return nil
}

// Enqueue hands op to the worker.
func (db *Database) Enqueue(op Operation) error {
	if db.closed.Load() {
		op.Fail(ErrDatabaseClosed)
		return ErrDatabaseClosed
	}
	return db.worker.Enqueue(op)
}

// QueueSize returns the number of operations not yet finished by the worker.
func (db *Database) QueueSize() int { return db.worker.QueueSize() }

// Execute queues a statement whose result is discarded.
func (db *Database) Execute(query string, args ...any) {
	_ = db.Enqueue(NewExecuteOperation(query, args...))
}

// ExecuteStatement queues a prepared statement whose result is discarded.
func (db *Database) ExecuteStatement(stmt *PreparedStatement) {
	_ = db.Enqueue(NewPreparedExecuteOperation(stmt))
}

// DirectExecute runs a statement on a dedicated connection and waits for it.
func (db *Database) DirectExecute(ctx context.Context, query string, args ...any) error {
	return db.direct(ctx, "direct_execute", rawStatement(query, args))
}

// DirectExecuteStatement runs a prepared statement and waits for it.
func (db *Database) DirectExecuteStatement(ctx context.Context, stmt *PreparedStatement) error {
	return db.direct(ctx, "direct_execute", preparedStatement(stmt))
}

func (db *Database) direct(ctx context.Context, operation string, s sqlStatement) (err error) {
	ctx, span := db.startSpan(ctx, operation, s.text())
	defer func() { db.finishSpan(span, err) }()

	conn, err := db.connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return db.execOn(ctx, conn, s)
}

// Query runs a query on a dedicated connection and waits for its result.
func (db *Database) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	return db.directQuery(ctx, rawStatement(query, args))
}

// QueryStatement runs a prepared query and waits for its result.
func (db *Database) QueryStatement(ctx context.Context, stmt *PreparedStatement) (*ResultSet, error) {
	return db.directQuery(ctx, preparedStatement(stmt))
}

func (db *Database) directQuery(ctx context.Context, s sqlStatement) (res *ResultSet, err error) {
	ctx, span := db.startSpan(ctx, "query", s.text())
	defer func() { db.finishSpan(span, err) }()

	conn, err := db.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return db.queryOn(ctx, conn, s)
}

// AsyncQuery queues a query and returns a callback to register with a
// CallbackProcessor.
func (db *Database) AsyncQuery(query string, args ...any) *QueryCallback {
	return newQueryCallback(db, db.enqueueQuery(rawStatement(query, args)))
}

// AsyncQueryStatement queues a prepared query.
func (db *Database) AsyncQueryStatement(stmt *PreparedStatement) *QueryCallback {
	return newQueryCallback(db, db.enqueueQuery(preparedStatement(stmt)))
}

func (db *Database) enqueueQuery(s sqlStatement) *Future[*ResultSet] {
	op := &QueryOperation{baseOperation: newBaseOperation(), statement: s, future: newFuture[*ResultSet]()}
	_ = db.Enqueue(op)
	return op.future
}

// DelayQueryHolder queues every query of h as one operation.
func (db *Database) DelayQueryHolder(h *QueryHolder) *HolderCallback {
	op := NewQueryHolderOperation(h)
	_ = db.Enqueue(op)
	return newHolderCallback(op.future)
}

// BeginTransaction returns an empty transaction bound to nothing until it is
// committed.
func (db *Database) BeginTransaction() *Transaction { return NewTransaction() }

// CommitTransaction queues tx without reporting the outcome.
func (db *Database) CommitTransaction(tx *Transaction) {
	_ = db.Enqueue(NewTransactionOperation(tx))
}

// AsyncCommitTransaction queues tx and returns a callback reporting whether
// it committed.
func (db *Database) AsyncCommitTransaction(tx *Transaction) *TransactionCallback {
	op := NewTransactionResultOperation(tx)
	_ = db.Enqueue(op)
	return newTransactionCallback(op.future)
}

// DirectCommitTransaction commits tx on a dedicated connection and waits,
// with the same deadlock retry as queued commits.
func (db *Database) DirectCommitTransaction(ctx context.Context, tx *Transaction) (err error) {
	ctx, span := db.startSpan(ctx, "direct_transaction", tx.summary())
	defer func() { db.finishSpan(span, err) }()

	conn, err := db.connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return db.commitWithRetry(ctx, conn, tx)
}

// KeepAlive queues a ping so the server does not drop an idle session.
func (db *Database) KeepAlive() {
	_ = db.Enqueue(NewPingOperation())
}

// runOperation executes op on a connection of its own. It never panics.
func (db *Database) runOperation(ctx context.Context, op Operation) (err error) {
	start := time.Now()
	kind := op.Kind()
	ctx, span := db.startSpan(ctx, kind.String(), op.Statement())
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s operation panicked: %v", kind, r)
			op.Fail(err)
		}
		db.finishSpan(span, err)
		db.recordOperation(ctx, kind, time.Since(start), err)
		if err != nil {
			attrs := append([]slog.Attr{
				slog.String("operation_id", op.ID().String()),
				slog.String("operation", kind.String()),
			}, errorAttrs(err)...)
			db.logEvent(ctx, slog.LevelError, "database operation failed", attrs...)
		}
	}()

	conn, err := db.connector.Connect(ctx)
	if err != nil {
		op.Fail(err)
		return err
	}
	defer conn.Close()
	return op.Run(ctx, db, conn)
}

func (db *Database) execOn(ctx context.Context, conn *Connection, s sqlStatement) error {
	query, args, err := s.bind()
	if err != nil {
		return fmt.Errorf("%s: %w", query, err)
	}
	start := time.Now()
	_, err = conn.Exec(ctx, query, args...)
	db.logQuery(ctx, "execute", query, args, time.Since(start), err)
	return newQueryError(err, query, args)
}

func (db *Database) queryOn(ctx context.Context, conn *Connection, s sqlStatement) (*ResultSet, error) {
	query, args, err := s.bind()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", query, err)
	}
	start := time.Now()
	res, err := conn.Query(ctx, query, args...)
	db.logQuery(ctx, "query", query, args, time.Since(start), err)
	if err != nil {
		return nil, newQueryError(err, query, args)
	}
	return res, nil
}
