// ABOUTME: File-variant tests over fixture address book databases.

package contacts

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/2389/grimoire/internal/appledb"
	"github.com/2389/grimoire/internal/backend"
	"github.com/2389/grimoire/internal/fault"
)

func newBookDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "AddressBook-v22.abcddb")
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE ZABCDRECORD (Z_PK INTEGER PRIMARY KEY, ZFIRSTNAME TEXT, ZLASTNAME TEXT, ZORGANIZATION TEXT, ZMODIFICATIONDATE REAL)`,
		`CREATE TABLE ZABCDPHONENUMBER (Z_PK INTEGER PRIMARY KEY, ZOWNER INTEGER, ZFULLNUMBER TEXT, ZLABEL TEXT)`,
		`CREATE TABLE ZABCDEMAILADDRESS (Z_PK INTEGER PRIMARY KEY, ZOWNER INTEGER, ZADDRESS TEXT, ZLABEL TEXT)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

func seed(t *testing.T, path, stmt string, args ...any) {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(stmt, args...)
	require.NoError(t, err)
}

func seedBook(t *testing.T, path string) {
	t.Helper()
	seed(t, path, `INSERT INTO ZABCDRECORD VALUES
		(1, 'Ada', 'Lovelace', NULL, 726969600),
		(2, NULL, NULL, 'Acme Corp', 726969700),
		(3, 'Grace', 'Hopper', NULL, 726969800),
		(4, NULL, NULL, NULL, NULL)`) // metadata row, not a card
	seed(t, path, `INSERT INTO ZABCDPHONENUMBER (ZOWNER, ZFULLNUMBER, ZLABEL) VALUES
		(1, '+1 555 0100', '_$!<Mobile>!$_'),
		(1, '+1 555 0101', '_$!<Home>!$_'),
		(3, '+1 555 0199', 'custom label')`)
	seed(t, path, `INSERT INTO ZABCDEMAILADDRESS (ZOWNER, ZADDRESS, ZLABEL) VALUES
		(1, 'ada@example.com', '_$!<Work>!$_')`)
}

func store(t *testing.T, path string) *FileStore {
	t.Helper()
	return NewFileStore(path, nil, nil)
}

func TestListReturnsCardsWithLabeledValues(t *testing.T) {
	path := newBookDB(t)
	seedBook(t, path)

	p, err := store(t, path).List(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, p.Items, 3, "rows with no name or organization are not cards")

	ada := p.Items[0]
	assert.Equal(t, "1", ada.ID)
	assert.Equal(t, "Ada", ada.FirstName)
	require.Len(t, ada.Phones, 2)
	assert.Equal(t, Labeled{Label: "Mobile", Value: "+1 555 0100"}, ada.Phones[0])
	assert.Equal(t, Labeled{Label: "Home", Value: "+1 555 0101"}, ada.Phones[1])
	require.Len(t, ada.Emails, 1)
	assert.Equal(t, "Work", ada.Emails[0].Label)

	assert.Equal(t, "Acme Corp", p.Items[1].Organization)
	assert.Empty(t, p.Items[1].Phones)

	assert.Equal(t, "custom label", p.Items[2].Phones[0].Label, "unwrapped labels pass through")
}

func TestListPaginatesAscending(t *testing.T) {
	path := newBookDB(t)
	seedBook(t, path)
	s := store(t, path)

	first, err := s.List(context.Background(), 2, "")
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.True(t, first.HasMore)
	assert.Equal(t, "1", first.Items[0].ID)

	second, err := s.List(context.Background(), 2, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "3", second.Items[0].ID)
	assert.False(t, second.HasMore)
}

func TestSearchMatchesNameOrgEmailOrPhone(t *testing.T) {
	path := newBookDB(t)
	seedBook(t, path)
	s := store(t, path)

	cases := map[string]string{
		"grace":           "3",
		"acme":            "2",
		"ada@example.com": "1",
		"555 0199":        "3",
	}
	for query, wantID := range cases {
		p, err := s.Search(context.Background(), query, 10, "")
		require.NoError(t, err, query)
		require.Len(t, p.Items, 1, query)
		assert.Equal(t, wantID, p.Items[0].ID, query)
	}
}

func TestSearchNoMatchIsEmptyPage(t *testing.T) {
	path := newBookDB(t)
	seedBook(t, path)

	p, err := store(t, path).Search(context.Background(), "nobody", 10, "")
	require.NoError(t, err)
	assert.Empty(t, p.Items)
	assert.False(t, p.HasMore)
}

func TestGet(t *testing.T) {
	path := newBookDB(t)
	seedBook(t, path)
	s := store(t, path)

	c, err := s.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", c.LastName)
	assert.Len(t, c.Phones, 2)
	assert.Equal(t, "2024-01-15T00:00:00Z", c.Modified.String())

	_, err = s.Get(context.Background(), "99")
	assert.True(t, errors.Is(err, fault.ErrNotFound))

	_, err = s.Get(context.Background(), "not-a-number")
	assert.True(t, errors.Is(err, fault.ErrValidation))
}

func TestLoadLabeledToleratesUnparseableIDs(t *testing.T) {
	path := newBookDB(t)
	seedBook(t, path)

	db, err := appledb.Open(path, appledb.Options{})
	require.NoError(t, err)
	defer db.Close()

	// No ID resolves to a primary key, so there is nothing to look up;
	// that must not degenerate into a malformed IN clause.
	c := Contact{ID: "not-a-number"}
	require.NoError(t, store(t, path).loadLabeled(context.Background(), db, []*Contact{&c}))
	assert.Empty(t, c.Phones)
	assert.Empty(t, c.Emails)
}

func TestHybridRejectsNonFileAssignment(t *testing.T) {
	h := New(Config{
		DBPath:     "/nonexistent/book.abcddb",
		Assignment: backend.Assignment{OpList: backend.KindAutomation, OpGet: backend.KindFramework},
	})

	_, err := h.List(context.Background(), 10, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrUnsupported))
	assert.Contains(t, err.Error(), "read-only domain")

	_, err = h.Get(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrUnsupported))
	assert.Contains(t, err.Error(), "framework variant is not composed")
}

func TestDefaultDBPathFallsBackToNewestSource(t *testing.T) {
	home := t.TempDir()
	base := filepath.Join(home, "Library", "Application Support", "AddressBook")

	srcA := filepath.Join(base, "Sources", "AAAA", "AddressBook-v22.abcddb")
	srcB := filepath.Join(base, "Sources", "BBBB", "AddressBook-v22.abcddb")
	for _, p := range []string{srcA, srcB} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("db"), 0o600))
	}
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(srcA, old, old))

	assert.Equal(t, srcB, DefaultDBPath(home))

	// The primary database wins when present.
	primary := filepath.Join(base, "AddressBook-v22.abcddb")
	require.NoError(t, os.WriteFile(primary, []byte("db"), 0o600))
	assert.Equal(t, primary, DefaultDBPath(home))
}
