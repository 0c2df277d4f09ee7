// ABOUTME: File-backed messages variant: defensive keyset reads over
// ABOUTME: chat.db with schema validation and timestamp fallback.

package messages

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

// DefaultDBPath is where the Messages store lives under a home directory.
func DefaultDBPath(home string) string {
	return filepath.Join(home, "Library", "Messages", "chat.db")
}

// expects pins the chat.db layout the queries below touch. Validated
// against the live file on every open.
var expects = []appledb.Expect{
	{Table: "chat", Columns: []string{"ROWID", "guid", "chat_identifier", "display_name", "service_name"}},
	{Table: "message", Columns: []string{"ROWID", "guid", "text", "attributedBody", "date", "is_from_me", "is_read", "handle_id"}},
	{Table: "chat_message_join", Columns: []string{"chat_id", "message_id"}},
	{Table: "handle", Columns: []string{"ROWID", "id"}},
}

// FileStore reads chat.db directly. Listing order is newest-first by
// message ROWID; cursors resume strictly after the last returned row's
// primary key, so inserts during iteration never duplicate a row.
type FileStore struct {
	path   string
	opts   appledb.Options
	logger *slog.Logger
}

// NewFileStore builds a FileStore over dbPath, or the default location
// when dbPath is empty.
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

// cursorRowID extracts the numeric resume key from an opaque cursor, or 0
// when no cursor was supplied.
func cursorRowID(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	c, err := page.Decode(cursor)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(c.LastID, 10, 64)
	if err != nil {
		return 0, fault.MalformedCursor(err)
	}
	return id, nil
}

func (f *FileStore) ListChats(ctx context.Context, limit int, cursor string) (page.Page[Chat], error) {
	limit = page.Clamp(limit)
	afterID, err := cursorRowID(cursor)
	if err != nil {
		return page.Page[Chat]{}, err
	}

	db, err := f.open(ctx)
	if err != nil {
		return page.Page[Chat]{}, err
	}
	defer db.Close()

	q := `SELECT c.ROWID, c.guid, c.chat_identifier, c.display_name, c.service_name,
	             MAX(m.date) AS last_message_date
	      FROM chat c
	      LEFT JOIN chat_message_join cmj ON cmj.chat_id = c.ROWID
	      LEFT JOIN message m ON m.ROWID = cmj.message_id`
	args := []any{}
	if afterID > 0 {
		q += ` WHERE c.ROWID < ?`
		args = append(args, afterID)
	}
	q += ` GROUP BY c.ROWID ORDER BY c.ROWID DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return page.Page[Chat]{}, err
	}
	chats := make([]Chat, 0, len(rows))
	for _, r := range rows {
		chats = append(chats, chatFromRow(r))
	}
	return page.Build(chats, limit, chatCursor), nil
}

func (f *FileStore) ListMessages(ctx context.Context, mq MessageQuery) (page.Page[Message], error) {
	limit := page.Clamp(mq.Limit)
	afterID, err := cursorRowID(mq.Cursor)
	if err != nil {
		return page.Page[Message]{}, err
	}

	db, err := f.open(ctx)
	if err != nil {
		return page.Page[Message]{}, err
	}
	defer db.Close()

	q := `SELECT m.ROWID, m.guid, m.text, m.attributedBody, m.date, m.is_from_me, m.is_read,
	             cmj.chat_id, h.id AS sender
	      FROM message m
	      JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
	      LEFT JOIN handle h ON h.ROWID = m.handle_id
	      WHERE 1=1`
	args := []any{}
	if mq.ChatID != "" {
		chatID, perr := strconv.ParseInt(mq.ChatID, 10, 64)
		if perr != nil {
			return page.Page[Message]{}, fault.BadField("chatId", "must be a numeric chat identifier")
		}
		q += ` AND cmj.chat_id = ?`
		args = append(args, chatID)
	}
	if mq.UnreadOnly {
		q += ` AND m.is_read = 0 AND m.is_from_me = 0`
	}
	if afterID > 0 {
		q += ` AND m.ROWID < ?`
		args = append(args, afterID)
	}
	q += ` ORDER BY m.ROWID DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return page.Page[Message]{}, err
	}
	msgs := make([]Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, messageFromRow(r))
	}
	return page.Build(msgs, limit, messageCursor), nil
}

func (f *FileStore) Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Message], error) {
	if query == "" {
		return page.Page[Message]{}, fault.MissingField("query")
	}
	limit = page.Clamp(limit)
	afterID, err := cursorRowID(cursor)
	if err != nil {
		return page.Page[Message]{}, err
	}

	db, err := f.open(ctx)
	if err != nil {
		return page.Page[Message]{}, err
	}
	defer db.Close()

	q := `SELECT m.ROWID, m.guid, m.text, m.attributedBody, m.date, m.is_from_me, m.is_read,
	             cmj.chat_id, h.id AS sender
	      FROM message m
	      JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
	      LEFT JOIN handle h ON h.ROWID = m.handle_id
	      WHERE m.text LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(query) + "%"}
	if afterID > 0 {
		q += ` AND m.ROWID < ?`
		args = append(args, afterID)
	}
	q += ` ORDER BY m.ROWID DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return page.Page[Message]{}, err
	}
	msgs := make([]Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, messageFromRow(r))
	}
	return page.Build(msgs, limit, messageCursor), nil
}

// Send is not implemented by the file variant; the hybrid never routes it
// here under the default assignment.
func (f *FileStore) Send(ctx context.Context, recipient, text string) error {
	return fault.Unsupported(Domain, OpSend,
		"chat.db is a sync artifact; rows inserted directly are not honored by the application")
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

func chatFromRow(r appledb.Row) Chat {
	var c Chat
	if id, ok := r.Int("ROWID"); ok {
		c.ID = strconv.FormatInt(id, 10)
	}
	c.GUID, _ = r.Text("guid")
	if name, ok := r.Text("display_name"); ok && name != "" {
		c.Name = name
	} else {
		c.Name, _ = r.Text("chat_identifier")
	}
	c.Service, _ = r.Text("service_name")
	c.LastMessage = appledb.NewTimestamp(r["last_message_date"], appledb.EpochNanoseconds)
	return c
}

func messageFromRow(r appledb.Row) Message {
	var m Message
	if id, ok := r.Int("ROWID"); ok {
		m.ID = strconv.FormatInt(id, 10)
	}
	m.GUID, _ = r.Text("guid")
	if chatID, ok := r.Int("chat_id"); ok {
		m.ChatID = strconv.FormatInt(chatID, 10)
	}
	m.Sender, _ = r.Text("sender")
	if text, ok := r.Text("text"); ok && text != "" {
		m.Text = text
	} else if blob, ok := r.Blob("attributedBody"); ok {
		// Newer OS builds leave text NULL and store the content in an
		// archived attributed string.
		m.Text = textFromAttributedBody(blob)
	}
	m.Date = appledb.NewTimestamp(r["date"], appledb.EpochNanoseconds)
	m.FromMe, _ = r.Bool("is_from_me")
	m.Read, _ = r.Bool("is_read")
	return m
}

func chatCursor(c Chat) page.Cursor {
	return page.Cursor{LastID: c.ID, TS: c.LastMessage.Unix()}
}

func messageCursor(m Message) page.Cursor {
	return page.Cursor{LastID: m.ID, TS: m.Date.Unix()}
}
