// ABOUTME: File-backed mail variant: keyset reads over the newest
// ABOUTME: Envelope Index with sender/recipient/mailbox resolution.

package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/2389/grimoire/internal/appledb"
	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/page"
)

// DefaultDBPath resolves the newest Envelope Index under a home
// directory; the mail data directory is versioned (V9, V10, …).
func DefaultDBPath(home string) string {
	matches, _ := filepath.Glob(filepath.Join(home, "Library", "Mail", "V*", "MailData", "Envelope Index"))
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
	return filepath.Join(home, "Library", "Mail", "V10", "MailData", "Envelope Index")
}

var expects = []appledb.Expect{
	{Table: "messages", Columns: []string{"ROWID", "subject", "sender", "date_received", "read", "mailbox"}},
	{Table: "subjects", Columns: []string{"ROWID", "subject"}},
	{Table: "addresses", Columns: []string{"ROWID", "address", "comment"}},
	{Table: "mailboxes", Columns: []string{"ROWID", "url"}},
	{Table: "recipients", Columns: []string{"message_id", "address_id", "position"}},
}

// FileStore reads the envelope index, newest-first by primary key.
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

const messageSelect = `SELECT m.ROWID, s.subject, m.date_received, m.read,
	a.address AS sender_address, a.comment AS sender_comment,
	x.url AS mailbox_url,
	(SELECT a2.address FROM recipients r JOIN addresses a2 ON a2.ROWID = r.address_id
	 WHERE r.message_id = m.ROWID ORDER BY r.position LIMIT 1) AS recipient_address
	FROM messages m
	LEFT JOIN subjects s ON s.ROWID = m.subject
	LEFT JOIN addresses a ON a.ROWID = m.sender
	LEFT JOIN mailboxes x ON x.ROWID = m.mailbox
	WHERE 1=1`

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

	q := messageSelect
	args := []any{}
	if mq.Mailbox != "" {
		q += ` AND x.url LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(mq.Mailbox)+"%")
	}
	if mq.UnreadOnly {
		q += ` AND m.read = 0`
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

	pat := "%" + escapeLike(query) + "%"
	q := messageSelect + ` AND (s.subject LIKE ? ESCAPE '\' OR a.address LIKE ? ESCAPE '\' OR a.comment LIKE ? ESCAPE '\')`
	args := []any{pat, pat, pat}
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

func messageFromRow(r appledb.Row) Message {
	var m Message
	if id, ok := r.Int("ROWID"); ok {
		m.ID = strconv.FormatInt(id, 10)
	}
	m.Subject, _ = r.Text("subject")
	m.Sender = formatAddress(r)
	m.Recipient, _ = r.Text("recipient_address")
	if u, ok := r.Text("mailbox_url"); ok {
		m.Mailbox = mailboxName(u)
	}
	m.Date = appledb.NewTimestamp(r["date_received"], appledb.EpochSeconds)
	m.Read, _ = r.Bool("read")
	return m
}

// formatAddress renders the sender as "Name <address>" when the index
// has a display name, bare address otherwise.
func formatAddress(r appledb.Row) string {
	address, _ := r.Text("sender_address")
	comment, _ := r.Text("sender_comment")
	if comment != "" && address != "" {
		return fmt.Sprintf("%s <%s>", comment, address)
	}
	if address != "" {
		return address
	}
	return comment
}

// mailboxName reduces a mailbox URL to its last path segment, unescaped:
// "imap://user@host/INBOX" reads as "INBOX".
func mailboxName(u string) string {
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		u = u[i+1:]
	}
	if dec, err := url.PathUnescape(u); err == nil {
		return dec
	}
	return u
}

func messageCursor(m Message) page.Cursor {
	return page.Cursor{LastID: m.ID, TS: m.Date.Unix()}
}
