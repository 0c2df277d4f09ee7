// ABOUTME: Storage-layer tests: open classification, defensive query
// ABOUTME: execution, and bind-parameter fallback against fixture databases.

package appledb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/grimoire/internal/fault"
)

// newFixture builds a throwaway database the way the owning application
// would have: with the real driver, outside this package's open path.
func newFixture(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	defer db.Close()
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return path
}

func TestOpenMissingFileIsDatabaseMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "no-such.db"), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrStorage))
	assert.True(t, errors.Is(err, fault.ErrDatabaseMissing), "missing file must not be a generic open failure")
	assert.False(t, errors.Is(err, fault.ErrOpenFailed))
	assert.Contains(t, err.Error(), "no-such.db")
}

func TestOpenMissingFileReclassifiedWhenProbeDeniesAccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	_, err := Open(path, Options{Probe: func() bool { return false }})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrPermission),
		"a hidden protected file looks missing; the probe reclassifies it")
	assert.Contains(t, err.Error(), "Full Disk Access")
}

func TestOpenMissingFileStaysMissingWhenProbeGrantsAccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	_, err := Open(path, Options{Probe: func() bool { return true }})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrDatabaseMissing))
	assert.False(t, errors.Is(err, fault.ErrPermission))
}

func TestQueryCollectsTypedRows(t *testing.T) {
	path := newFixture(t,
		`CREATE TABLE message (ROWID INTEGER PRIMARY KEY, guid TEXT, date INTEGER, score REAL, body BLOB)`,
		`INSERT INTO message VALUES (1, 'g-1', 700000000000000000, 0.5, x'DEADBEEF')`,
		`INSERT INTO message VALUES (2, 'g-2', NULL, NULL, NULL)`,
	)
	db, err := Open(path, Options{})
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(context.Background(), `SELECT * FROM message ORDER BY ROWID`)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	id, ok := rows[0].Int("ROWID")
	require.True(t, ok)
	assert.Equal(t, int64(1), id)

	guid, ok := rows[0].Text("guid")
	require.True(t, ok)
	assert.Equal(t, "g-1", guid)

	score, ok := rows[0].Float("score")
	require.True(t, ok)
	assert.InDelta(t, 0.5, score, 1e-9)

	blob, ok := rows[0].Blob("body")
	require.True(t, ok)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, blob)

	// NULL columns read as absent, never panic.
	assert.False(t, rows[1].Has("date"))
	_, ok = rows[1].Text("date")
	assert.False(t, ok)
}

func TestQueryNoMatchesIsEmptyNotError(t *testing.T) {
	path := newFixture(t, `CREATE TABLE chat (ROWID INTEGER PRIMARY KEY, guid TEXT)`)
	db, err := Open(path, Options{})
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(context.Background(), `SELECT * FROM chat WHERE guid = ?`, "absent")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQueryBindsByPosition(t *testing.T) {
	path := newFixture(t,
		`CREATE TABLE t (a INTEGER, b TEXT)`,
		`INSERT INTO t VALUES (1, 'one'), (2, 'two'), (3, 'three')`,
	)
	db, err := Open(path, Options{})
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(context.Background(), `SELECT b FROM t WHERE a > ? AND b != ? ORDER BY a`, 1, "three")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	b, _ := rows[0].Text("b")
	assert.Equal(t, "two", b)
}

func TestQueryUnsupportedBindTypeFallsBackToText(t *testing.T) {
	path := newFixture(t,
		`CREATE TABLE t (v TEXT)`,
		`INSERT INTO t VALUES ('{1 2}')`,
	)
	db, err := Open(path, Options{})
	require.NoError(t, err)
	defer db.Close()

	// A struct is not a driver type; it degrades to fmt.Sprint text
	// instead of failing the bind.
	type pair struct{ X, Y int }
	rows, err := db.Query(context.Background(), `SELECT v FROM t WHERE v = ?`, pair{1, 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestQueryErrorIsStorageKind(t *testing.T) {
	path := newFixture(t, `CREATE TABLE t (v TEXT)`)
	db, err := Open(path, Options{})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Query(context.Background(), `SELECT nope FROM missing_table`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrStorage))
	assert.True(t, errors.Is(err, fault.ErrQueryFailed))
}

func TestReadOnlyOpenRejectsWrites(t *testing.T) {
	path := newFixture(t, `CREATE TABLE t (v TEXT)`)
	db, err := Open(path, Options{})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(context.Background(), `INSERT INTO t VALUES ('x')`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrStorage))
}

func TestOpenRWAllowsWrites(t *testing.T) {
	path := newFixture(t, `CREATE TABLE t (v TEXT)`)
	db, err := OpenRW(path, Options{})
	require.NoError(t, err)
	defer db.Close()

	n, err := db.Exec(context.Background(), `INSERT INTO t VALUES (?)`, "x")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
