package ygggo_gamedb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// ConfirmFunc is asked before a missing database is created. Returning
// false aborts bootstrap for that database.
type ConfirmFunc func(ctx context.Context, name, database string) bool

// AlwaysConfirm creates missing databases without asking.
func AlwaysConfirm(context.Context, string, string) bool { return true }

// PrepareFunc registers the statements of one logical database.
type PrepareFunc func(r *StatementRegistry)

type loaderEntry struct {
	db      *Database
	updater *Updater
	prepare PrepareFunc
	result  UpdateResult
}

// Loader owns the set of logical databases of a process. It bootstraps them
// all or none: workers start only once every database has been opened,
// populated, updated and had its statements prepared.
type Loader struct {
	cfg        UpdatesConfig
	worker     WorkerConfig
	telemetry  TelemetryConfig
	logger     *slog.Logger
	confirm    ConfirmFunc
	deadlockMu sync.Mutex

	entries []*loaderEntry
	byName  map[string]*loaderEntry
	started bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfirm sets the callback consulted before creating a missing database.
func WithConfirm(fn ConfirmFunc) LoaderOption {
	return func(l *Loader) { l.confirm = fn }
}

// WithLoaderLogger sets the logger handed to every database.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// WithLoaderWorker sets the worker tuning handed to every database.
func WithLoaderWorker(wc WorkerConfig) LoaderOption {
	return func(l *Loader) { l.worker = wc }
}

// WithLoaderTelemetry sets the telemetry switches handed to every database.
func WithLoaderTelemetry(tc TelemetryConfig) LoaderOption {
	return func(l *Loader) { l.telemetry = tc }
}

// NewLoader returns an empty loader.
func NewLoader(cfg UpdatesConfig, opts ...LoaderOption) *Loader {
	l := &Loader{
		cfg: cfg,
		worker: WorkerConfig{
			WaitInterval:    defaultWaitInterval,
			DeadlockRetries: defaultDeadlockRetries,
		},
		byName: make(map[string]*loaderEntry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewLoaderFromConfig builds a loader with every configured database.
func NewLoaderFromConfig(cfg *Config, prepare map[string]PrepareFunc, opts ...LoaderOption) (*Loader, error) {
	base := []LoaderOption{WithLoaderWorker(cfg.Worker), WithLoaderTelemetry(cfg.Telemetry)}
	l := NewLoader(cfg.Updates, append(base, opts...)...)
	for _, named := range cfg.Databases() {
		if _, err := l.AddDatabase(named.Name, named.Config, prepare[named.Name]); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// AddDatabase registers a logical database built from cfg.
func (l *Loader) AddDatabase(name string, cfg DatabaseConfig, prepare PrepareFunc, opts ...Option) (*Database, error) {
	base := []Option{
		WithDeadlockLock(&l.deadlockMu),
		WithWorkerConfig(l.worker),
		WithTelemetry(l.telemetry),
	}
	if l.logger != nil {
		base = append(base, WithLogger(l.logger))
	}
	db, err := NewDatabase(name, cfg, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := l.Add(db, prepare); err != nil {
		return nil, err
	}
	return db, nil
}

// Add registers an already built database.
func (l *Loader) Add(db *Database, prepare PrepareFunc) error {
	if l.started {
		return fmt.Errorf("add %s: loader already started", db.name)
	}
	if _, dup := l.byName[db.name]; dup {
		return fmt.Errorf("add %s: database already registered", db.name)
	}
	e := &loaderEntry{db: db, prepare: prepare}
	if db.cfg.Updates {
		e.updater = NewUpdater(db, l.cfg)
	}
	l.entries = append(l.entries, e)
	l.byName[db.name] = e
	return nil
}

// Database returns the registered database called name.
func (l *Loader) Database(name string) *Database {
	if e, ok := l.byName[name]; ok {
		return e.db
	}
	return nil
}

// Databases returns every registered database in registration order.
func (l *Loader) Databases() []*Database {
	dbs := make([]*Database, 0, len(l.entries))
	for _, e := range l.entries {
		dbs = append(dbs, e.db)
	}
	return dbs
}

// UpdateResult returns the last update summary of name.
func (l *Loader) UpdateResult(name string) (UpdateResult, bool) {
	e, ok := l.byName[name]
	if !ok {
		return UpdateResult{}, false
	}
	return e.result, true
}

// Load runs open, populate, update and prepare across every database, one
// step at a time. A step that fails for any database stops the sequence;
// all failures of that step are returned together and no worker starts.
func (l *Loader) Load(ctx context.Context) error {
	steps := []struct {
		name string
		run  func(context.Context, *loaderEntry) error
	}{
		{"open", l.open},
		{"populate", l.populate},
		{"update", l.update},
		{"prepare", l.prepareStatements},
	}
	for _, step := range steps {
		var errs *multierror.Error
		for _, e := range l.entries {
			if err := step.run(ctx, e); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s %s: %w", step.name, e.db.name, err))
			}
		}
		if err := errs.ErrorOrNil(); err != nil {
			return err
		}
	}
	for _, e := range l.entries {
		e.db.Start()
	}
	l.started = true
	return nil
}

func (l *Loader) open(ctx context.Context, e *loaderEntry) error {
	err := e.db.Open(ctx)
	if err == nil || Classify(err) != ErrKindUnknownDatabase {
		return err
	}
	if !l.cfg.AutoSetup {
		return err
	}
	if l.confirm != nil && !l.confirm(ctx, e.db.name, e.db.cfg.Database) {
		return fmt.Errorf("creation of database %q declined: %w", e.db.cfg.Database, err)
	}
	e.db.logEvent(ctx, slog.LevelInfo, "creating missing database", slog.String("schema", e.db.cfg.Database))
	if err := createDatabase(ctx, e.db.cfg, e.db.telemetryEnabled); err != nil {
		return err
	}
	return e.db.Open(ctx)
}

func (l *Loader) populate(ctx context.Context, e *loaderEntry) error {
	if e.updater == nil {
		return nil
	}
	return e.updater.Populate(ctx)
}

func (l *Loader) update(ctx context.Context, e *loaderEntry) error {
	if e.updater == nil {
		return nil
	}
	res, err := e.updater.Update(ctx)
	e.result = res
	return err
}

func (l *Loader) prepareStatements(_ context.Context, e *loaderEntry) error {
	e.db.PrepareStatements(e.prepare)
	return nil
}

// KeepAlive queues a ping on every database.
func (l *Loader) KeepAlive() {
	for _, e := range l.entries {
		e.db.KeepAlive()
	}
}

// Close stops every worker.
func (l *Loader) Close() error {
	var errs *multierror.Error
	for _, e := range l.entries {
		if err := e.db.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
