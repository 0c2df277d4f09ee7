// ABOUTME: File-backed contacts variant: keyset reads over the address
// ABOUTME: book store with labeled phone/email loading per page.

package contacts

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/2389/grimoire/internal/appledb"
	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/page"
)

// DefaultDBPath resolves the address book store under a home directory:
// the primary database when present, otherwise the newest per-source one.
func DefaultDBPath(home string) string {
	base := filepath.Join(home, "Library", "Application Support", "AddressBook")
	primary := filepath.Join(base, "AddressBook-v22.abcddb")
	if _, err := os.Stat(primary); err == nil {
		return primary
	}
	matches, _ := filepath.Glob(filepath.Join(base, "Sources", "*", "AddressBook-v22.abcddb"))
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
	return primary
}

var expects = []appledb.Expect{
	{Table: "ZABCDRECORD", Columns: []string{"Z_PK", "ZFIRSTNAME", "ZLASTNAME", "ZORGANIZATION", "ZMODIFICATIONDATE"}},
	{Table: "ZABCDPHONENUMBER", Columns: []string{"ZOWNER", "ZFULLNUMBER", "ZLABEL"}},
	{Table: "ZABCDEMAILADDRESS", Columns: []string{"ZOWNER", "ZADDRESS", "ZLABEL"}},
}

// FileStore reads the address book store. Listing order is ascending
// primary key, the store's insertion order; there is no meaningful
// recency ordering for contacts.
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

// recordFilter keeps rows that are actual contact cards: at least one of
// the name/organization columns set.
const recordFilter = `(r.ZFIRSTNAME IS NOT NULL OR r.ZLASTNAME IS NOT NULL OR r.ZORGANIZATION IS NOT NULL)`

func (f *FileStore) List(ctx context.Context, limit int, cursor string) (page.Page[Contact], error) {
	limit = page.Clamp(limit)
	afterPK, err := cursorPK(cursor)
	if err != nil {
		return page.Page[Contact]{}, err
	}

	db, err := f.open(ctx)
	if err != nil {
		return page.Page[Contact]{}, err
	}
	defer db.Close()

	q := `SELECT r.Z_PK, r.ZFIRSTNAME, r.ZLASTNAME, r.ZORGANIZATION, r.ZMODIFICATIONDATE
	      FROM ZABCDRECORD r
	      WHERE ` + recordFilter
	args := []any{}
	if afterPK > 0 {
		q += ` AND r.Z_PK > ?`
		args = append(args, afterPK)
	}
	q += ` ORDER BY r.Z_PK ASC LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return page.Page[Contact]{}, err
	}
	return f.assemblePage(ctx, db, rows, limit)
}

func (f *FileStore) Search(ctx context.Context, query string, limit int, cursor string) (page.Page[Contact], error) {
	if query == "" {
		return page.Page[Contact]{}, fault.MissingField("query")
	}
	limit = page.Clamp(limit)
	afterPK, err := cursorPK(cursor)
	if err != nil {
		return page.Page[Contact]{}, err
	}

	db, err := f.open(ctx)
	if err != nil {
		return page.Page[Contact]{}, err
	}
	defer db.Close()

	pat := "%" + escapeLike(query) + "%"
	q := `SELECT r.Z_PK, r.ZFIRSTNAME, r.ZLASTNAME, r.ZORGANIZATION, r.ZMODIFICATIONDATE
	      FROM ZABCDRECORD r
	      WHERE ` + recordFilter + `
	        AND (r.ZFIRSTNAME LIKE ? ESCAPE '\' OR r.ZLASTNAME LIKE ? ESCAPE '\'
	             OR r.ZORGANIZATION LIKE ? ESCAPE '\'
	             OR EXISTS (SELECT 1 FROM ZABCDEMAILADDRESS e WHERE e.ZOWNER = r.Z_PK AND e.ZADDRESS LIKE ? ESCAPE '\')
	             OR EXISTS (SELECT 1 FROM ZABCDPHONENUMBER p WHERE p.ZOWNER = r.Z_PK AND p.ZFULLNUMBER LIKE ? ESCAPE '\'))`
	args := []any{pat, pat, pat, pat, pat}
	if afterPK > 0 {
		q += ` AND r.Z_PK > ?`
		args = append(args, afterPK)
	}
	q += ` ORDER BY r.Z_PK ASC LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return page.Page[Contact]{}, err
	}
	return f.assemblePage(ctx, db, rows, limit)
}

func (f *FileStore) Get(ctx context.Context, id string) (Contact, error) {
	if id == "" {
		return Contact{}, fault.MissingField("id")
	}
	pk, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return Contact{}, fault.BadField("id", "must be a numeric contact identifier")
	}

	db, err := f.open(ctx)
	if err != nil {
		return Contact{}, err
	}
	defer db.Close()

	rows, err := db.Query(ctx,
		`SELECT r.Z_PK, r.ZFIRSTNAME, r.ZLASTNAME, r.ZORGANIZATION, r.ZMODIFICATIONDATE
		 FROM ZABCDRECORD r WHERE r.Z_PK = ? AND `+recordFilter, pk)
	if err != nil {
		return Contact{}, err
	}
	if len(rows) == 0 {
		return Contact{}, fault.NotFound("contact", id)
	}

	c := contactFromRow(rows[0])
	if err := f.loadLabeled(ctx, db, []*Contact{&c}); err != nil {
		return Contact{}, err
	}
	return c, nil
}

// assemblePage trims to the page, then loads phones and emails for just
// the returned contacts.
func (f *FileStore) assemblePage(ctx context.Context, db *appledb.DB, rows []appledb.Row, limit int) (page.Page[Contact], error) {
	contacts := make([]Contact, 0, len(rows))
	for _, r := range rows {
		contacts = append(contacts, contactFromRow(r))
	}
	p := page.Build(contacts, limit, contactCursor)

	refs := make([]*Contact, len(p.Items))
	for i := range p.Items {
		refs[i] = &p.Items[i]
	}
	if err := f.loadLabeled(ctx, db, refs); err != nil {
		return page.Page[Contact]{}, err
	}
	return p, nil
}

func (f *FileStore) loadLabeled(ctx context.Context, db *appledb.DB, contacts []*Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	byPK := make(map[int64]*Contact, len(contacts))
	args := make([]any, 0, len(contacts))
	ph := make([]string, 0, len(contacts))
	for _, c := range contacts {
		pk, err := strconv.ParseInt(c.ID, 10, 64)
		if err != nil {
			continue
		}
		byPK[pk] = c
		args = append(args, pk)
		ph = append(ph, "?")
	}
	// Every ID unparseable leaves nothing to look up; an empty IN () is a
	// syntax error, not a no-op.
	if len(args) == 0 {
		return nil
	}
	in := "(" + strings.Join(ph, ", ") + ")"

	phones, err := db.Query(ctx,
		`SELECT ZOWNER, ZFULLNUMBER, ZLABEL FROM ZABCDPHONENUMBER WHERE ZOWNER IN `+in+` ORDER BY ROWID`, args...)
	if err != nil {
		return err
	}
	for _, r := range phones {
		owner, _ := r.Int("ZOWNER")
		c := byPK[owner]
		if c == nil {
			continue
		}
		if value, ok := r.Text("ZFULLNUMBER"); ok && value != "" {
			label, _ := r.Text("ZLABEL")
			c.Phones = append(c.Phones, Labeled{Label: prettyLabel(label), Value: value})
		}
	}

	emails, err := db.Query(ctx,
		`SELECT ZOWNER, ZADDRESS, ZLABEL FROM ZABCDEMAILADDRESS WHERE ZOWNER IN `+in+` ORDER BY ROWID`, args...)
	if err != nil {
		return err
	}
	for _, r := range emails {
		owner, _ := r.Int("ZOWNER")
		c := byPK[owner]
		if c == nil {
			continue
		}
		if value, ok := r.Text("ZADDRESS"); ok && value != "" {
			label, _ := r.Text("ZLABEL")
			c.Emails = append(c.Emails, Labeled{Label: prettyLabel(label), Value: value})
		}
	}
	return nil
}

// prettyLabel strips the store's label wrapper: `_$!<Mobile>!$_` reads as
// "Mobile". Unwrapped labels pass through.
func prettyLabel(s string) string {
	if strings.HasPrefix(s, "_$!<") && strings.HasSuffix(s, ">!$_") {
		return s[4 : len(s)-4]
	}
	return s
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

func contactFromRow(r appledb.Row) Contact {
	var c Contact
	if pk, ok := r.Int("Z_PK"); ok {
		c.ID = strconv.FormatInt(pk, 10)
	}
	c.FirstName, _ = r.Text("ZFIRSTNAME")
	c.LastName, _ = r.Text("ZLASTNAME")
	c.Organization, _ = r.Text("ZORGANIZATION")
	c.Modified = appledb.NewTimestamp(r["ZMODIFICATIONDATE"], appledb.EpochSeconds)
	return c
}

func contactCursor(c Contact) page.Cursor {
	return page.Cursor{LastID: c.ID, TS: c.Modified.Unix()}
}
