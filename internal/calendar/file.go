// ABOUTME: File-backed calendar variant: chronological tuple-keyset reads
// ABOUTME: over Calendar.sqlitedb.

package calendar

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

// DefaultDBPath is where the calendar store lives under a home directory.
func DefaultDBPath(home string) string {
	return filepath.Join(home, "Library", "Calendars", "Calendar.sqlitedb")
}

var expects = []appledb.Expect{
	{Table: "CalendarItem", Columns: []string{
		"ROWID", "summary", "description", "start_date", "end_date", "all_day", "calendar_id", "location_id"}},
	{Table: "Calendar", Columns: []string{"ROWID", "title"}},
	{Table: "Location", Columns: []string{"ROWID", "title"}},
}

// FileStore reads the calendar store. Events list chronologically; the
// cursor resumes after a (start, rowid) tuple so events sharing a start
// second are neither skipped nor repeated. Event starts are stored as
// whole seconds, which is what makes the tuple exact.
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

const eventSelect = `SELECT i.ROWID, i.summary, i.description, i.start_date, i.end_date, i.all_day,
	c.title AS calendar_title, l.title AS location_title
	FROM CalendarItem i
	LEFT JOIN Calendar c ON c.ROWID = i.calendar_id
	LEFT JOIN Location l ON l.ROWID = i.location_id
	WHERE i.summary IS NOT NULL`

func (f *FileStore) ListEvents(ctx context.Context, eq EventQuery) (page.Page[Event], error) {
	limit := page.Clamp(eq.Limit)

	q := eventSelect
	args := []any{}
	if !eq.From.IsZero() {
		q += ` AND i.start_date >= ?`
		args = append(args, appledb.AppleFromTime(eq.From, appledb.EpochSeconds))
	}
	if !eq.To.IsZero() {
		q += ` AND i.start_date < ?`
		args = append(args, appledb.AppleFromTime(eq.To, appledb.EpochSeconds))
	}
	if eq.Cursor != "" {
		c, err := page.Decode(eq.Cursor)
		if err != nil {
			return page.Page[Event]{}, err
		}
		rowid, err := strconv.ParseInt(c.LastID, 10, 64)
		if err != nil {
			return page.Page[Event]{}, fault.MalformedCursor(err)
		}
		after := appledb.AppleFromUnix(c.TS, appledb.EpochSeconds)
		q += ` AND (i.start_date > ? OR (i.start_date = ? AND i.ROWID > ?))`
		args = append(args, after, after, rowid)
	}
	q += ` ORDER BY i.start_date ASC, i.ROWID ASC LIMIT ?`
	args = append(args, limit+1)

	db, err := f.open(ctx)
	if err != nil {
		return page.Page[Event]{}, err
	}
	defer db.Close()

	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return page.Page[Event]{}, err
	}
	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, eventFromRow(r))
	}
	return page.Build(events, limit, eventCursor), nil
}

func (f *FileStore) Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Event], error) {
	if query == "" {
		return page.Page[Event]{}, fault.MissingField("query")
	}
	limit = page.Clamp(limit)

	q := eventSelect + ` AND (i.summary LIKE ? ESCAPE '\' OR i.description LIKE ? ESCAPE '\')`
	pat := "%" + escapeLike(query) + "%"
	args := []any{pat, pat}
	if cursor != "" {
		c, err := page.Decode(cursor)
		if err != nil {
			return page.Page[Event]{}, err
		}
		rowid, err := strconv.ParseInt(c.LastID, 10, 64)
		if err != nil {
			return page.Page[Event]{}, fault.MalformedCursor(err)
		}
		after := appledb.AppleFromUnix(c.TS, appledb.EpochSeconds)
		q += ` AND (i.start_date > ? OR (i.start_date = ? AND i.ROWID > ?))`
		args = append(args, after, after, rowid)
	}
	q += ` ORDER BY i.start_date ASC, i.ROWID ASC LIMIT ?`
	args = append(args, limit+1)

	db, err := f.open(ctx)
	if err != nil {
		return page.Page[Event]{}, err
	}
	defer db.Close()

	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return page.Page[Event]{}, err
	}
	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, eventFromRow(r))
	}
	return page.Build(events, limit, eventCursor), nil
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

func eventFromRow(r appledb.Row) Event {
	var e Event
	if id, ok := r.Int("ROWID"); ok {
		e.ID = strconv.FormatInt(id, 10)
	}
	e.Title, _ = r.Text("summary")
	e.CalendarName, _ = r.Text("calendar_title")
	e.Location, _ = r.Text("location_title")
	e.Notes, _ = r.Text("description")
	e.Start = appledb.NewTimestamp(r["start_date"], appledb.EpochSeconds)
	e.End = appledb.NewTimestamp(r["end_date"], appledb.EpochSeconds)
	e.AllDay, _ = r.Bool("all_day")
	return e
}

func eventCursor(e Event) page.Cursor {
	return page.Cursor{LastID: e.ID, TS: e.Start.Unix()}
}
