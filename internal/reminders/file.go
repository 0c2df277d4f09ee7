// ABOUTME: File-backed reminders variant: keyset reads over the newest
// ABOUTME: reminders store data file.

package reminders

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

// DefaultDBPath resolves the newest reminders data store under a home
// directory; the application shards data across Data-*.sqlitedb files.
func DefaultDBPath(home string) string {
	dir := filepath.Join(home, "Library", "Reminders", "Container_v1", "Stores")
	matches, _ := filepath.Glob(filepath.Join(dir, "Data-*.sqlitedb"))
	var newest string
	var newestMod int64
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		if mod := fi.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = m, mod
		}
	}
	if newest != "" {
		return newest
	}
	return filepath.Join(dir, "Data-local.sqlitedb")
}

var expects = []appledb.Expect{
	{Table: "ZREMCDREMINDER", Columns: []string{
		"Z_PK", "ZTITLE", "ZNOTES", "ZDUEDATE", "ZCOMPLETED", "ZLIST", "ZMARKEDFORDELETION"}},
	{Table: "ZREMCDBASELIST", Columns: []string{"Z_PK", "ZNAME"}},
}

// FileStore reads the reminders store, newest-first by primary key.
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

func (f *FileStore) ListLists(ctx context.Context) ([]List, error) {
	db, err := f.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(ctx,
		`SELECT Z_PK, ZNAME FROM ZREMCDBASELIST WHERE ZNAME IS NOT NULL ORDER BY Z_PK ASC`)
	if err != nil {
		return nil, err
	}
	lists := make([]List, 0, len(rows))
	for _, r := range rows {
		var l List
		if pk, ok := r.Int("Z_PK"); ok {
			l.ID = strconv.FormatInt(pk, 10)
		}
		l.Name, _ = r.Text("ZNAME")
		lists = append(lists, l)
	}
	return lists, nil
}

func (f *FileStore) ListReminders(ctx context.Context, rq ReminderQuery) (page.Page[Reminder], error) {
	limit := page.Clamp(rq.Limit)
	var afterPK int64
	if rq.Cursor != "" {
		c, err := page.Decode(rq.Cursor)
		if err != nil {
			return page.Page[Reminder]{}, err
		}
		afterPK, err = strconv.ParseInt(c.LastID, 10, 64)
		if err != nil {
			return page.Page[Reminder]{}, fault.MalformedCursor(err)
		}
	}

	db, err := f.open(ctx)
	if err != nil {
		return page.Page[Reminder]{}, err
	}
	defer db.Close()

	q := `SELECT r.Z_PK, r.ZTITLE, r.ZNOTES, r.ZDUEDATE, r.ZCOMPLETED, l.ZNAME AS list_name
	      FROM ZREMCDREMINDER r
	      LEFT JOIN ZREMCDBASELIST l ON l.Z_PK = r.ZLIST
	      WHERE r.ZTITLE IS NOT NULL
	        AND (r.ZMARKEDFORDELETION IS NULL OR r.ZMARKEDFORDELETION = 0)`
	args := []any{}
	if rq.ListName != "" {
		q += ` AND l.ZNAME = ?`
		args = append(args, rq.ListName)
	}
	if !rq.IncludeCompleted {
		q += ` AND (r.ZCOMPLETED IS NULL OR r.ZCOMPLETED = 0)`
	}
	if afterPK > 0 {
		q += ` AND r.Z_PK < ?`
		args = append(args, afterPK)
	}
	q += ` ORDER BY r.Z_PK DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return page.Page[Reminder]{}, err
	}
	items := make([]Reminder, 0, len(rows))
	for _, r := range rows {
		items = append(items, reminderFromRow(r))
	}
	return page.Build(items, limit, reminderCursor), nil
}

func reminderFromRow(r appledb.Row) Reminder {
	var rem Reminder
	if pk, ok := r.Int("Z_PK"); ok {
		rem.ID = strconv.FormatInt(pk, 10)
	}
	rem.Title, _ = r.Text("ZTITLE")
	rem.ListName, _ = r.Text("list_name")
	rem.Notes, _ = r.Text("ZNOTES")
	rem.Due = appledb.NewTimestamp(r["ZDUEDATE"], appledb.EpochSeconds)
	rem.Completed, _ = r.Bool("ZCOMPLETED")
	return rem
}

func reminderCursor(r Reminder) page.Cursor {
	return page.Cursor{LastID: r.ID, TS: r.Due.Unix()}
}
