// ABOUTME: Defensive access to private, externally-owned SQLite files using
// ABOUTME: the pure-Go driver; distinguishes missing, denied, and broken opens.

package appledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/tcc"
)

// DefaultBusyTimeout is how long the engine retries a lock-contended query
// internally before surfacing a busy error. The owning application takes
// short write locks during sync; several seconds absorbs them.
const DefaultBusyTimeout = 5 * time.Second

// Options tunes how a database is opened.
type Options struct {
	// Probe reports whether broad file access is currently granted. When a
	// read-only open cannot see the file and the probe reports false, the
	// failure is reclassified from "missing" to permission-denied, because
	// TCC hides protected files from unauthorized processes in ways that
	// are indistinguishable from absence. Nil skips the reclassification.
	Probe func() bool
	// BusyTimeout overrides DefaultBusyTimeout. Zero keeps the default.
	BusyTimeout time.Duration
}

// DB is one open connection to a private store. It is safe to hand across
// goroutines; concurrent queries serialize on the single underlying
// connection. A DB is scoped to one logical operation: open, query, close.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens the database at path read-only. The file must already exist:
// a missing file fails with the database-missing fault (or permission, per
// Options.Probe) rather than a generic open failure, so "not there" and
// "there but broken" stay distinguishable.
func Open(path string, opts Options) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if opts.Probe != nil && !opts.Probe() {
				return nil, fault.Permission(
					fmt.Sprintf("cannot read %s: Full Disk Access appears to be denied", path),
					tcc.RemediationFullDisk)
			}
			return nil, fault.DatabaseNotFound(path)
		case errors.Is(err, fs.ErrPermission):
			return nil, fault.Permission(
				fmt.Sprintf("cannot read %s: permission denied", path),
				tcc.RemediationFullDisk)
		default:
			return nil, fault.OpenFailed(path, err)
		}
	}
	return open("file:"+path+"?mode=ro", path, opts)
}

// OpenRW opens the database at path read-write. Reserved for explicit
// creation paths; the default backend assignments never write a private
// store directly.
func OpenRW(path string, opts Options) (*DB, error) {
	return open("file:"+path, path, opts)
}

func open(dsn, path string, opts Options) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fault.OpenFailed(path, err)
	}
	// One logical caller at a time; the connection's own serialization is
	// the concurrency contract here.
	db.SetMaxOpenConns(1)

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = DefaultBusyTimeout
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds())); err != nil {
		_ = db.Close()
		if isPermissionDenied(err) {
			return nil, fault.Permission(
				fmt.Sprintf("cannot open %s: operation not permitted", path),
				tcc.RemediationFullDisk)
		}
		return nil, fault.OpenFailed(path, err)
	}

	return &DB{db: db, path: path}, nil
}

// Path returns the file this DB was opened on.
func (d *DB) Path() string { return d.path }

// Close releases the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Query runs a parameterized SELECT-shaped statement and collects every
// result row. Parameters bind by position. No matching rows yields an
// empty slice, not an error.
func (d *DB) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := d.db.QueryContext(ctx, query, normalizeArgs(args)...)
	if err != nil {
		return nil, fault.QueryFailed(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fault.QueryFailed(err)
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fault.QueryFailed(err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = normalizeValue(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.QueryFailed(err)
	}
	return out, nil
}

// Exec runs a parameterized write statement and reports affected rows.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, normalizeArgs(args)...)
	if err != nil {
		return 0, fault.QueryFailed(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fault.QueryFailed(err)
	}
	return n, nil
}

// normalizeArgs maps bind parameters onto types the driver accepts.
// Unsupported types degrade to their textual representation — a
// bug-tolerance fallback for static caller data, not an API to rely on.
func normalizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = normalizeArg(a)
	}
	return out
}

func normalizeArg(v any) any {
	switch v.(type) {
	case nil,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32,
		float32, float64,
		bool, string, []byte, time.Time:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// normalizeValue collapses driver scan results into the Row vocabulary:
// int64, float64, string, []byte, or nil. Blobs are copied out of the
// driver's buffer.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...)
	case int64, float64, string, nil:
		return x
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// isPermissionDenied matches the OS-level denial the driver reports when
// TCC blocks a read on an existing file.
func isPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "operation not permitted") ||
		strings.Contains(msg, "not authorized")
}
