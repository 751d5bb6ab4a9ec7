package ygggo_gamedb

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// UpdaterState reports how far an Updater has progressed.
type UpdaterState int32

const (
	UpdaterUnpopulated UpdaterState = iota
	UpdaterPopulating
	UpdaterComparing
	UpdaterApplying
	UpdaterUpToDate
	UpdaterFailed
)

func (s UpdaterState) String() string {
	switch s {
	case UpdaterUnpopulated:
		return "unpopulated"
	case UpdaterPopulating:
		return "populating"
	case UpdaterComparing:
		return "comparing"
	case UpdaterApplying:
		return "applying"
	case UpdaterUpToDate:
		return "up_to_date"
	case UpdaterFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// includePrefix marks include paths relative to the source root.
const includePrefix = "$/"

// UpdateResult summarizes one Update run.
type UpdateResult struct {
	// Imported counts files executed, new or re-applied.
	Imported int
	// Recent and Archived count the available files per state.
	Recent   int
	Archived int
	Renamed  int
	Rehashed int
	// StateChanged counts entries whose state was updated without re-applying.
	StateChanged int
	// Orphans lists ledger entries whose file is gone.
	Orphans []string
	// Cleaned is true when Orphans were removed from the ledger.
	Cleaned bool
}

// Drifted reports orphans that were left in the ledger because there were
// more than the configured cleanup maximum.
func (r UpdateResult) Drifted() bool { return len(r.Orphans) > 0 && !r.Cleaned }

// migrationFile is one enumerated file with its content hash.
type migrationFile struct {
	name    string
	path    string
	state   FileState
	hash    string
	content []byte
}

// Updater keeps a database schema in step with a tree of migration files,
// tracking what was applied in the updates ledger table.
type Updater struct {
	db    *Database
	cfg   UpdatesConfig
	state atomic.Int32
}

// NewUpdater returns an updater for db.
func NewUpdater(db *Database, cfg UpdatesConfig) *Updater {
	return &Updater{db: db, cfg: cfg}
}

// State returns the current state.
func (u *Updater) State() UpdaterState { return UpdaterState(u.state.Load()) }

func (u *Updater) setState(s UpdaterState) { u.state.Store(int32(s)) }

func (u *Updater) fail(err error) error {
	u.setState(UpdaterFailed)
	return err
}

// resolvePath expands the source root prefix and makes relative paths
// relative to the source root.
func (u *Updater) resolvePath(p string) string {
	root := u.cfg.SourceRoot
	if root == "" {
		root = "."
	}
	if strings.HasPrefix(p, includePrefix) {
		return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(p, includePrefix)))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

// Populate applies the database's base file when the schema has no tables.
func (u *Updater) Populate(ctx context.Context) error {
	u.setState(UpdaterPopulating)
	conn, err := u.db.connector.Connect(ctx)
	if err != nil {
		return u.fail(err)
	}
	defer conn.Close()

	n, err := countTables(ctx, conn, u.db.cfg.Database)
	if err != nil {
		return u.fail(err)
	}
	if n > 0 {
		u.setState(UpdaterUpToDate)
		return nil
	}

	base := u.db.cfg.BaseFile
	if base == "" {
		u.db.logEvent(ctx, slog.LevelWarn, "database is empty and has no base file, skipping populate")
		u.setState(UpdaterUpToDate)
		return nil
	}
	path := u.resolvePath(base)
	u.db.logEvent(ctx, slog.LevelInfo, "database is empty, populating from base file", slog.String("file", path))

	content, err := os.ReadFile(path)
	if err != nil {
		return u.fail(fmt.Errorf("populate %s: %w", u.db.name, err))
	}
	if _, err := u.apply(ctx, conn, path, content); err != nil {
		return u.fail(err)
	}
	u.setState(UpdaterUpToDate)
	return nil
}

// Update brings the ledger in line with the include directories, applying
// new and changed files.
func (u *Updater) Update(ctx context.Context) (UpdateResult, error) {
	var result UpdateResult
	u.setState(UpdaterComparing)

	conn, err := u.db.connector.Connect(ctx)
	if err != nil {
		return result, u.fail(err)
	}
	defer conn.Close()

	l := newLedger(conn)
	if err := l.ensureTables(ctx); err != nil {
		return result, u.fail(err)
	}
	dirs, err := l.includes(ctx)
	if err != nil {
		return result, u.fail(err)
	}
	files, err := u.enumerate(dirs)
	if err != nil {
		return result, u.fail(err)
	}
	entries, err := l.entries(ctx)
	if err != nil {
		return result, u.fail(err)
	}

	u.setState(UpdaterApplying)

	applied := make(map[string]AppliedFileEntry, len(entries))
	hashToName := make(map[string]string, len(entries))
	for _, e := range entries {
		applied[e.Name] = e
		if e.Hash != "" {
			hashToName[e.Hash] = e.Name
		}
	}
	available := make(map[string]struct{}, len(files))
	for _, f := range files {
		available[f.name] = struct{}{}
		if f.state == StateArchived {
			result.Archived++
		} else {
			result.Recent++
		}
	}

	for _, f := range files {
		if err := u.reconcile(ctx, conn, l, f, applied, hashToName, available, &result); err != nil {
			return result, u.fail(err)
		}
	}

	for name := range applied {
		result.Orphans = append(result.Orphans, name)
	}
	sort.Strings(result.Orphans)
	if err := u.cleanOrphans(ctx, l, &result); err != nil {
		return result, u.fail(err)
	}

	u.db.logEvent(ctx, slog.LevelInfo, "database schema up to date",
		slog.Int("imported", result.Imported),
		slog.Int("recent", result.Recent),
		slog.Int("archived", result.Archived),
		slog.Int("renamed", result.Renamed),
		slog.Int("rehashed", result.Rehashed),
		slog.Int("orphans", len(result.Orphans)))
	u.setState(UpdaterUpToDate)
	return result, nil
}

// reconcile decides and performs the action for one file. Entries that are
// accounted for are removed from applied.
func (u *Updater) reconcile(ctx context.Context, conn *Connection, l *ledger, f migrationFile,
	applied map[string]AppliedFileEntry, hashToName map[string]string,
	available map[string]struct{}, result *UpdateResult) error {

	entry, known := applied[f.name]
	if !known {
		if old, ok := hashToName[f.hash]; ok && old != f.name {
			if _, stillThere := available[old]; stillThere {
				u.db.logEvent(ctx, slog.LevelWarn, "file has the same content as another present file, applying it as new",
					slog.String("file", f.name), slog.String("other", old))
			} else if _, pending := applied[old]; pending {
				u.db.logEvent(ctx, slog.LevelInfo, "renaming ledger entry", slog.String("from", old), slog.String("to", f.name))
				if err := l.rename(ctx, old, f.name); err != nil {
					return err
				}
				renamed := applied[old]
				delete(applied, old)
				delete(hashToName, f.hash)
				result.Renamed++
				if renamed.State != f.state {
					result.StateChanged++
					return l.updateState(ctx, f.name, f.state)
				}
				return nil
			}
		}
		speed, err := u.apply(ctx, conn, f.path, f.content)
		if err != nil {
			return err
		}
		result.Imported++
		u.db.recordUpdateApplied(ctx, f.state)
		return l.insert(ctx, f.name, f.hash, f.state, speed)
	}

	delete(applied, f.name)

	switch {
	case entry.Hash == "" && u.cfg.AllowRehash:
		u.db.logEvent(ctx, slog.LevelInfo, "rehashing ledger entry", slog.String("file", f.name))
		result.Rehashed++
		if err := l.rehash(ctx, f.name, f.hash); err != nil {
			return err
		}
		return u.syncState(ctx, l, entry, f, result)
	case !u.cfg.Redundancy, entry.Hash == f.hash:
		return u.syncState(ctx, l, entry, f, result)
	case entry.State == StateArchived && !u.cfg.ArchivedRedundancy:
		return u.syncState(ctx, l, entry, f, result)
	}

	u.db.logEvent(ctx, slog.LevelInfo, "file content changed, re-applying", slog.String("file", f.name))
	speed, err := u.apply(ctx, conn, f.path, f.content)
	if err != nil {
		return err
	}
	result.Imported++
	u.db.recordUpdateApplied(ctx, f.state)
	return l.overwrite(ctx, f.name, f.hash, f.state, speed)
}

func (u *Updater) syncState(ctx context.Context, l *ledger, entry AppliedFileEntry, f migrationFile, result *UpdateResult) error {
	if entry.State == f.state {
		return nil
	}
	result.StateChanged++
	return l.updateState(ctx, f.name, f.state)
}

func (u *Updater) cleanOrphans(ctx context.Context, l *ledger, result *UpdateResult) error {
	n := len(result.Orphans)
	if n == 0 {
		return nil
	}
	limit := u.cfg.CleanDeadRefMaxCount
	if limit >= 0 && n > limit {
		u.db.logEvent(ctx, slog.LevelError, "too many applied files are missing, leaving them in the ledger",
			slog.Int("missing", n), slog.Int("max", limit), slog.Any("files", result.Orphans))
		return nil
	}
	for _, name := range result.Orphans {
		u.db.logEvent(ctx, slog.LevelWarn, "applied file is missing, removing it from the ledger", slog.String("file", name))
	}
	if err := l.remove(ctx, result.Orphans); err != nil {
		return err
	}
	result.Cleaned = true
	return nil
}

// enumerate collects every .sql file under the include directories, sorted
// by file name.
func (u *Updater) enumerate(dirs []includeDirectory) ([]migrationFile, error) {
	seen := make(map[string]string)
	var files []migrationFile
	for _, d := range dirs {
		root := u.resolvePath(d.Path)
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			u.db.logEvent(context.Background(), slog.LevelWarn, "include directory does not exist, skipped",
				slog.String("path", root))
			continue
		}
		state := d.State
		if state != StateArchived {
			state = StateReleased
		}
		err = filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if de.IsDir() || !strings.EqualFold(filepath.Ext(path), ".sql") {
				return nil
			}
			name := de.Name()
			if prev, dup := seen[name]; dup {
				return fmt.Errorf("duplicate migration file name %s in %s and %s", name, prev, path)
			}
			seen[name] = path
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			files = append(files, migrationFile{
				name:    name,
				path:    path,
				state:   state,
				hash:    HashContent(content),
				content: content,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

// apply executes every statement of a file and returns the elapsed
// milliseconds.
func (u *Updater) apply(ctx context.Context, conn *Connection, path string, content []byte) (int64, error) {
	start := time.Now()
	u.db.logEvent(ctx, slog.LevelInfo, "applying migration file", slog.String("file", path))
	for _, stmt := range SplitStatements(string(content)) {
		stepStart := time.Now()
		_, err := conn.Exec(ctx, stmt)
		u.db.logQuery(ctx, "update", stmt, nil, time.Since(stepStart), err)
		if err != nil {
			return 0, fmt.Errorf("apply %s: %w", filepath.Base(path), newQueryError(err, stmt, nil))
		}
	}
	return time.Since(start).Milliseconds(), nil
}
