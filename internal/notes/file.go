// ABOUTME: File-backed notes variant: keyset reads over NoteStore.sqlite
// ABOUTME: with body extraction from the compressed archive column.

package notes

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/2389/grimoire/internal/appledb"
	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/page"
)

// DefaultDBPath is where the Notes store lives under a home directory.
func DefaultDBPath(home string) string {
	return filepath.Join(home, "Library", "Group Containers", "group.com.apple.notes", "NoteStore.sqlite")
}

// Notes and folders share one entity table; a note row links to its
// folder row through ZFOLDER, and folder rows carry their name in a
// different title column.
var expects = []appledb.Expect{
	{Table: "ZICCLOUDSYNCINGOBJECT", Columns: []string{
		"Z_PK", "ZIDENTIFIER", "ZTITLE1", "ZTITLE2", "ZSNIPPET",
		"ZMODIFICATIONDATE1", "ZFOLDER", "ZMARKEDFORDELETION"}},
	{Table: "ZICNOTEDATA", Columns: []string{"ZNOTE", "ZDATA"}},
}

const noteColumns = `n.Z_PK, n.ZIDENTIFIER, n.ZTITLE1, n.ZSNIPPET, n.ZMODIFICATIONDATE1, f.ZTITLE2 AS folder_name`

const noteFrom = ` FROM ZICCLOUDSYNCINGOBJECT n
	LEFT JOIN ZICCLOUDSYNCINGOBJECT f ON f.Z_PK = n.ZFOLDER
	WHERE n.ZTITLE1 IS NOT NULL
	  AND (n.ZMARKEDFORDELETION IS NULL OR n.ZMARKEDFORDELETION = 0)`

// FileStore reads NoteStore.sqlite directly, newest-first by primary key.
type FileStore struct {
	path   string
	opts   appledb.Options
	logger *slog.Logger
}

func NewFileStore(dbPath string, probe func() bool, logger *slog.Logger) *FileStore {
	if dbPath == "" {
		home, _ := os.UserHomeDir()
		dbPath = DefaultDBPath(home)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: dbPath, opts: appledb.Options{Probe: probe}, logger: logger}
}

func (f *FileStore) open(ctx context.Context) (*appledb.DB, error) {
	db, err := appledb.Open(f.path, f.opts)
	if err != nil {
		return nil, err
	}
	if err := db.Validate(ctx, expects); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func cursorPK(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	c, err := page.Decode(cursor)
	if err != nil {
		return 0, err
	}
	pk, err := strconv.ParseInt(c.LastID, 10, 64)
	if err != nil {
		return 0, fault.MalformedCursor(err)
	}
	return pk, nil
}

func (f *FileStore) List(ctx context.Context, limit int, cursor string) (page.Page[Note], error) {
	limit = page.Clamp(limit)
	afterPK, err := cursorPK(cursor)
	if err != nil {
		return page.Page[Note]{}, err
	}

	db, err := f.open(ctx)
	if err != nil {
		return page.Page[Note]{}, err
	}
	defer db.Close()

	q := `SELECT ` + noteColumns + noteFrom
	args := []any{}
	if afterPK > 0 {
		q += ` AND n.Z_PK < ?`
		args = append(args, afterPK)
	}
	q += ` ORDER BY n.Z_PK DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return page.Page[Note]{}, err
	}
	notes := make([]Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, noteFromRow(r))
	}
	return page.Build(notes, limit, noteCursor), nil
}

func (f *FileStore) Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Note], error) {
	if query == "" {
		return page.Page[Note]{}, fault.MissingField("query")
	}
	limit = page.Clamp(limit)
	afterPK, err := cursorPK(cursor)
	if err != nil {
		return page.Page[Note]{}, err
	}

	db, err := f.open(ctx)
	if err != nil {
		return page.Page[Note]{}, err
	}
	defer db.Close()

	q := `SELECT ` + noteColumns + noteFrom +
		` AND (n.ZTITLE1 LIKE ? ESCAPE '\' OR n.ZSNIPPET LIKE ? ESCAPE '\')`
	pat := "%" + escapeLike(query) + "%"
	args := []any{pat, pat}
	if afterPK > 0 {
		q += ` AND n.Z_PK < ?`
		args = append(args, afterPK)
	}
	q += ` ORDER BY n.Z_PK DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return page.Page[Note]{}, err
	}
	notes := make([]Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, noteFromRow(r))
	}
	return page.Build(notes, limit, noteCursor), nil
}

// Get returns one note with its extracted plaintext body. The id matches
// either the primary key or the sync identifier.
func (f *FileStore) Get(ctx context.Context, id string) (Note, error) {
	if id == "" {
		return Note{}, fault.MissingField("id")
	}

	db, err := f.open(ctx)
	if err != nil {
		return Note{}, err
	}
	defer db.Close()

	// The shared FROM fragment ends mid-WHERE, so Get spells out its
	// statement to slot in the body-data join.
	stmt := `SELECT ` + noteColumns + `, d.ZDATA AS body_data
	FROM ZICCLOUDSYNCINGOBJECT n
	LEFT JOIN ZICCLOUDSYNCINGOBJECT f ON f.Z_PK = n.ZFOLDER
	LEFT JOIN ZICNOTEDATA d ON d.ZNOTE = n.Z_PK
	WHERE n.ZTITLE1 IS NOT NULL
	  AND (n.ZMARKEDFORDELETION IS NULL OR n.ZMARKEDFORDELETION = 0)
	  AND (CAST(n.Z_PK AS TEXT) = ? OR n.ZIDENTIFIER = ?)
	LIMIT 1`

	rows, err := db.Query(ctx, stmt, id, id)
	if err != nil {
		return Note{}, err
	}
	if len(rows) == 0 {
		return Note{}, fault.NotFound("note", id)
	}

	note := noteFromRow(rows[0])
	if blob, ok := rows[0].Blob("body_data"); ok {
		note.Body = bodyText(blob)
	}
	return note, nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func noteFromRow(r appledb.Row) Note {
	var n Note
	if pk, ok := r.Int("Z_PK"); ok {
		n.ID = strconv.FormatInt(pk, 10)
	}
	n.Title, _ = r.Text("ZTITLE1")
	n.Folder, _ = r.Text("folder_name")
	n.Snippet, _ = r.Text("ZSNIPPET")
	n.Modified = appledb.NewTimestamp(r["ZMODIFICATIONDATE1"], appledb.EpochSeconds)
	return n
}

func noteCursor(n Note) page.Cursor {
	return page.Cursor{LastID: n.ID, TS: n.Modified.Unix()}
}
