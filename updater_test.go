package ygggo_gamedb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type updaterFixture struct {
	t    *testing.T
	db   *Database
	root string
	cfg  UpdatesConfig
}

// newUpdaterFixture returns an sqlite database with an applied_log table that
// migration files write to, so tests can count how often a file ran.
func newUpdaterFixture(t *testing.T) *updaterFixture {
	t.Helper()
	root := t.TempDir()
	db := newSQLiteDatabase(t, "world")
	mustExec(t, db, "CREATE TABLE applied_log (file TEXT NOT NULL)")

	f := &updaterFixture{
		t:    t,
		db:   db,
		root: root,
		cfg: UpdatesConfig{
			SourceRoot:           root,
			Redundancy:           true,
			AllowRehash:          true,
			CleanDeadRefMaxCount: 3,
		},
	}
	require.NoError(t, AddInclude(context.Background(), db, "$/sql/updates/world", StateReleased))
	require.NoError(t, AddInclude(context.Background(), db, "$/sql/old/world", StateArchived))
	return f
}

func (f *updaterFixture) released(name, content string) string {
	p := filepath.Join(f.root, "sql", "updates", "world", name)
	writeFile(f.t, p, content)
	return p
}

func (f *updaterFixture) archived(name, content string) string {
	p := filepath.Join(f.root, "sql", "old", "world", name)
	writeFile(f.t, p, content)
	return p
}

func (f *updaterFixture) update() UpdateResult {
	f.t.Helper()
	res, err := NewUpdater(f.db, f.cfg).Update(context.Background())
	require.NoError(f.t, err)
	return res
}

func (f *updaterFixture) runs(file string) int64 {
	f.t.Helper()
	res, err := f.db.Query(context.Background(), "SELECT COUNT(*) FROM applied_log WHERE file = ?", file)
	require.NoError(f.t, err)
	return res.Field(0).Int64()
}

func (f *updaterFixture) entries() map[string]AppliedFileEntry {
	f.t.Helper()
	conn, err := f.db.Connector().Connect(context.Background())
	require.NoError(f.t, err)
	defer conn.Close()
	list, err := newLedger(conn).entries(context.Background())
	require.NoError(f.t, err)
	out := make(map[string]AppliedFileEntry, len(list))
	for _, e := range list {
		out[e.Name] = e
	}
	return out
}

func (f *updaterFixture) seedEntry(name, hash string, state FileState) {
	f.t.Helper()
	mustExec(f.t, f.db, "INSERT INTO updates (name, hash, state, speed) VALUES (?, ?, ?, 0)", name, hash, string(state))
}

func logInsert(file string) string {
	return "INSERT INTO applied_log (file) VALUES ('" + file + "');\n"
}

func TestUpdater_AppliesNewFilesOnce(t *testing.T) {
	f := newUpdaterFixture(t)
	f.released("2024_01_02_00_world.sql", logInsert("b"))
	f.released("2024_01_01_00_world.sql", "CREATE TABLE creature (guid INTEGER PRIMARY KEY);\n"+logInsert("a"))
	f.archived("2020_05_01_00_world.sql", logInsert("old"))

	res := f.update()
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 2, res.Recent)
	assert.Equal(t, 1, res.Archived)
	assert.Empty(t, res.Orphans)

	entries := f.entries()
	require.Len(t, entries, 3)
	assert.Equal(t, StateReleased, entries["2024_01_01_00_world.sql"].State)
	assert.Equal(t, StateArchived, entries["2020_05_01_00_world.sql"].State)
	assert.Equal(t, HashContent([]byte(logInsert("b"))), entries["2024_01_02_00_world.sql"].Hash)
	assert.False(t, entries["2024_01_02_00_world.sql"].Timestamp.IsZero())

	u := NewUpdater(f.db, f.cfg)
	assert.Equal(t, UpdaterUnpopulated, u.State())
	again, err := u.Update(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Imported)
	assert.Equal(t, UpdaterUpToDate, u.State())
	for _, file := range []string{"a", "b", "old"} {
		assert.Equal(t, int64(1), f.runs(file), file)
	}
}

func TestUpdater_LedgerScenario(t *testing.T) {
	f := newUpdaterFixture(t)
	a := logInsert("a")
	f.released("001_a.sql", a)
	f.seedEntry("001_a.sql", HashContent([]byte(a)), StateReleased)
	f.released("002_b.sql", logInsert("b"))

	res := f.update()
	assert.Equal(t, 1, res.Imported)
	assert.Zero(t, f.runs("a"), "known file with unchanged hash must not run")
	assert.Equal(t, int64(1), f.runs("b"))
	assert.Len(t, f.entries(), 2)
}

func TestUpdater_Rename(t *testing.T) {
	f := newUpdaterFixture(t)
	old := f.released("2024_01_01_00_world.sql", logInsert("a"))
	f.update()

	require.NoError(t, os.Rename(old, filepath.Join(filepath.Dir(old), "2024_01_01_01_world.sql")))
	res := f.update()

	assert.Equal(t, 1, res.Renamed)
	assert.Zero(t, res.Imported)
	assert.Empty(t, res.Orphans)
	assert.Equal(t, int64(1), f.runs("a"))

	entries := f.entries()
	assert.Contains(t, entries, "2024_01_01_01_world.sql")
	assert.NotContains(t, entries, "2024_01_01_00_world.sql")
}

func TestUpdater_SameContentAsPresentFileAppliedAsNew(t *testing.T) {
	f := newUpdaterFixture(t)
	f.released("001_a.sql", logInsert("dup"))
	f.update()

	f.released("002_copy.sql", logInsert("dup"))
	res := f.update()

	assert.Zero(t, res.Renamed)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, int64(2), f.runs("dup"))
	assert.Len(t, f.entries(), 2)
}

func TestUpdater_ChangedReleasedFileReapplied(t *testing.T) {
	f := newUpdaterFixture(t)
	f.released("001_a.sql", logInsert("v1"))
	f.update()

	changed := logInsert("v2")
	f.released("001_a.sql", changed)
	res := f.update()

	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, int64(1), f.runs("v2"))
	assert.Equal(t, HashContent([]byte(changed)), f.entries()["001_a.sql"].Hash)
}

func TestUpdater_RedundancyOff(t *testing.T) {
	f := newUpdaterFixture(t)
	original := logInsert("v1")
	f.released("001_a.sql", original)
	f.update()

	f.cfg.Redundancy = false
	f.released("001_a.sql", logInsert("v2"))
	res := f.update()

	assert.Zero(t, res.Imported)
	assert.Zero(t, f.runs("v2"))
	assert.Equal(t, HashContent([]byte(original)), f.entries()["001_a.sql"].Hash)
}

func TestUpdater_ArchivedFilesAreImmune(t *testing.T) {
	f := newUpdaterFixture(t)
	f.archived("001_old.sql", logInsert("v1"))
	f.update()

	f.archived("001_old.sql", logInsert("v2"))
	res := f.update()
	assert.Zero(t, res.Imported)
	assert.Zero(t, f.runs("v2"))

	f.cfg.ArchivedRedundancy = true
	res = f.update()
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, int64(1), f.runs("v2"))
}

func TestUpdater_StateFollowsDirectory(t *testing.T) {
	f := newUpdaterFixture(t)
	p := f.released("001_a.sql", logInsert("a"))
	f.update()

	require.NoError(t, os.Remove(p))
	f.archived("001_a.sql", logInsert("a"))
	res := f.update()

	assert.Zero(t, res.Imported)
	assert.Equal(t, 1, res.StateChanged)
	assert.Equal(t, StateArchived, f.entries()["001_a.sql"].State)
	assert.Equal(t, int64(1), f.runs("a"))
}

func TestUpdater_ChangedFileMovedToArchiveReapplied(t *testing.T) {
	f := newUpdaterFixture(t)
	p := f.released("001_a.sql", logInsert("v1"))
	f.update()

	require.NoError(t, os.Remove(p))
	changed := logInsert("v2")
	f.archived("001_a.sql", changed)
	res := f.update()

	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, int64(1), f.runs("v2"))
	entry := f.entries()["001_a.sql"]
	assert.Equal(t, StateArchived, entry.State)
	assert.Equal(t, HashContent([]byte(changed)), entry.Hash)
}

func TestUpdater_Rehash(t *testing.T) {
	f := newUpdaterFixture(t)
	content := logInsert("a")
	f.released("001_a.sql", content)
	f.seedEntry("001_a.sql", "", StateReleased)

	res := f.update()
	assert.Equal(t, 1, res.Rehashed)
	assert.Zero(t, res.Imported)
	assert.Zero(t, f.runs("a"))
	assert.Equal(t, HashContent([]byte(content)), f.entries()["001_a.sql"].Hash)
}

func TestUpdater_OrphanCleanup(t *testing.T) {
	f := newUpdaterFixture(t)
	f.seedEntry("gone_1.sql", "AA", StateReleased)
	f.seedEntry("gone_2.sql", "BB", StateReleased)

	res := f.update()
	assert.Equal(t, []string{"gone_1.sql", "gone_2.sql"}, res.Orphans)
	assert.True(t, res.Cleaned)
	assert.False(t, res.Drifted())
	assert.Empty(t, f.entries())
}

func TestUpdater_TooManyOrphansLeftInPlace(t *testing.T) {
	f := newUpdaterFixture(t)
	for _, name := range []string{"g1.sql", "g2.sql", "g3.sql", "g4.sql", "g5.sql"} {
		f.seedEntry(name, name, StateReleased)
	}

	res := f.update()
	assert.Len(t, res.Orphans, 5)
	assert.False(t, res.Cleaned)
	assert.True(t, res.Drifted())
	assert.Len(t, f.entries(), 5)

	f.cfg.CleanDeadRefMaxCount = -1
	res = f.update()
	assert.True(t, res.Cleaned)
	assert.Empty(t, f.entries())
}

func TestUpdater_StopsAtFailingFile(t *testing.T) {
	f := newUpdaterFixture(t)
	f.released("001_a.sql", logInsert("a"))
	f.released("002_bad.sql", "INSERT INTO no_such_table VALUES (1);\n")
	f.released("003_c.sql", logInsert("c"))

	u := NewUpdater(f.db, f.cfg)
	_, err := u.Update(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_bad.sql")
	assert.Equal(t, UpdaterFailed, u.State())

	entries := f.entries()
	assert.Contains(t, entries, "001_a.sql")
	assert.NotContains(t, entries, "002_bad.sql")
	assert.NotContains(t, entries, "003_c.sql")
	assert.Zero(t, f.runs("c"))
}

func TestUpdater_DuplicateFileNames(t *testing.T) {
	f := newUpdaterFixture(t)
	f.released("001_a.sql", logInsert("a"))
	f.archived("001_a.sql", logInsert("a"))

	_, err := NewUpdater(f.db, f.cfg).Update(context.Background())
	assert.ErrorContains(t, err, "duplicate migration file name")
}

func TestUpdater_MissingIncludeDirectorySkipped(t *testing.T) {
	f := newUpdaterFixture(t)
	require.NoError(t, AddInclude(context.Background(), f.db, "/does/not/exist", StateReleased))
	f.released("001_a.sql", logInsert("a"))

	res := f.update()
	assert.Equal(t, 1, res.Imported)
}

func TestUpdater_ResolvePath(t *testing.T) {
	u := NewUpdater(nil, UpdatesConfig{SourceRoot: "/srv/game"})
	assert.Equal(t, filepath.FromSlash("/srv/game/sql/updates"), u.resolvePath("$/sql/updates"))
	assert.Equal(t, filepath.FromSlash("/srv/game/sql/base/world.sql"), u.resolvePath("sql/base/world.sql"))
	assert.Equal(t, "/opt/world.sql", u.resolvePath("/opt/world.sql"))
}

func TestUpdater_Populate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sql", "base", "auth.sql"),
		"CREATE TABLE account (id INTEGER PRIMARY KEY, username TEXT);\n"+
			"INSERT INTO account (id, username) VALUES (1, 'ADMIN');\n")

	db, err := NewDatabase("auth", DatabaseConfig{
		Driver:   DriverSQLite,
		Database: filepath.Join(t.TempDir(), "auth.db"),
		BaseFile: "sql/base/auth.sql",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	u := NewUpdater(db, UpdatesConfig{SourceRoot: root})
	require.NoError(t, u.Populate(context.Background()))
	assert.Equal(t, UpdaterUpToDate, u.State())

	res, err := db.Query(context.Background(), "SELECT username FROM account WHERE id = ?", 1)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", res.Field(0).String())

	// tables exist now, so a second populate must not re-run the base file
	require.NoError(t, u.Populate(context.Background()))
	assert.Equal(t, UpdaterUpToDate, u.State())
	res, err = db.Query(context.Background(), "SELECT COUNT(*) FROM account")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Field(0).Int64())
}

func TestUpdater_PopulateMissingBaseFile(t *testing.T) {
	db, err := NewDatabase("auth", DatabaseConfig{
		Driver:   DriverSQLite,
		Database: filepath.Join(t.TempDir(), "auth.db"),
		BaseFile: "sql/base/missing.sql",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	u := NewUpdater(db, UpdatesConfig{SourceRoot: t.TempDir()})
	require.Error(t, u.Populate(context.Background()))
	assert.Equal(t, UpdaterFailed, u.State())
}

func TestUpdater_PopulateWithoutBaseFile(t *testing.T) {
	db := newSQLiteDatabase(t, "hotfixes")
	u := NewUpdater(db, UpdatesConfig{})
	require.NoError(t, u.Populate(context.Background()))
	assert.Equal(t, UpdaterUpToDate, u.State())
}
