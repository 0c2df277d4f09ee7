// ABOUTME: Shared error taxonomy for automation, storage, and backend failures.
// ABOUTME: Raw subprocess, SQL, and filesystem errors never leave this vocabulary unwrapped.

package fault

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a failure into one of the taxonomy's categories.
type Kind int

const (
	// KindPermission covers denied OS privacy capabilities: broad file
	// access, native API access, or per-application automation access.
	KindPermission Kind = iota + 1
	// KindExecution covers interpreter subprocesses exiting non-zero.
	KindExecution
	// KindTimeout covers interpreter subprocesses exceeding their deadline.
	KindTimeout
	// KindStorage covers database missing, open, query, and schema failures.
	KindStorage
	// KindValidation covers malformed caller input: missing fields, bad
	// cursors, field names outside an allowed set.
	KindValidation
	// KindNotFound covers resource identifiers absent from the backend.
	KindNotFound
	// KindUnsupported covers operations permanently unavailable on the
	// selected backend variant, as opposed to transient failures.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindPermission:
		return "permission_denied"
	case KindExecution:
		return "execution_failed"
	case KindTimeout:
		return "timeout"
	case KindStorage:
		return "storage_failed"
	case KindValidation:
		return "validation_failed"
	case KindNotFound:
		return "not_found"
	case KindUnsupported:
		return "unsupported_by_backend"
	default:
		return "unknown"
	}
}

// Kind sentinels for errors.Is matching. A sentinel carries only its kind;
// Fault.Is matches any fault of the same kind against it.
var (
	ErrPermission  = &Fault{Kind: KindPermission}
	ErrExecution   = &Fault{Kind: KindExecution}
	ErrTimeout     = &Fault{Kind: KindTimeout}
	ErrStorage     = &Fault{Kind: KindStorage}
	ErrValidation  = &Fault{Kind: KindValidation}
	ErrNotFound    = &Fault{Kind: KindNotFound}
	ErrUnsupported = &Fault{Kind: KindUnsupported}
)

// Sub-cause sentinels, reachable through the wrapped cause chain so callers
// can distinguish failures sharing a kind (errors.Is(err, ErrDatabaseMissing)).
var (
	ErrDatabaseMissing = errors.New("database missing")
	ErrOpenFailed      = errors.New("database open failed")
	ErrQueryFailed     = errors.New("query failed")
	ErrSchemaMismatch  = errors.New("schema mismatch")
	ErrMalformedCursor = errors.New("malformed cursor")
)

// Fault is the one error shape this system surfaces. Message is
// human-readable; Remediation, when set, tells the user how to restore the
// capability that failed.
type Fault struct {
	Kind        Kind
	Message     string
	Remediation string
	Err         error
}

func (f *Fault) Error() string {
	var b strings.Builder
	b.WriteString(f.Message)
	if f.Remediation != "" {
		b.WriteString(". ")
		b.WriteString(f.Remediation)
	}
	return b.String()
}

func (f *Fault) Unwrap() error { return f.Err }

// Is matches kind sentinels: any *Fault target of the same kind matches.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.Kind == f.Kind
}

// KindOf returns the taxonomy kind of err, or 0 when no Fault is in its
// chain.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}

// Permission builds a permission-denied fault. remediation names the
// settings location that grants the capability.
func Permission(message, remediation string) *Fault {
	return &Fault{Kind: KindPermission, Message: message, Remediation: remediation}
}

// ExecutionFailed wraps a non-zero interpreter exit. stderr is surfaced
// verbatim when present.
func ExecutionFailed(stderr string, err error) *Fault {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = "script failed with no diagnostic output"
	}
	return &Fault{Kind: KindExecution, Message: msg, Err: err}
}

// Timeout reports an interpreter run that exceeded its deadline.
func Timeout(d time.Duration) *Fault {
	return &Fault{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("script timed out after %s", d),
	}
}

// DatabaseNotFound reports a read-only open against a path that does not
// exist, distinct from a generic open failure.
func DatabaseNotFound(path string) *Fault {
	return &Fault{
		Kind:    KindStorage,
		Message: fmt.Sprintf("database not found at %s", path),
		Err:     ErrDatabaseMissing,
	}
}

// OpenFailed reports a database that exists but could not be opened.
func OpenFailed(path string, err error) *Fault {
	return &Fault{
		Kind:    KindStorage,
		Message: fmt.Sprintf("opening database at %s: %v", path, err),
		Err:     fmt.Errorf("%w: %w", ErrOpenFailed, err),
	}
}

// QueryFailed wraps a query-time database error.
func QueryFailed(err error) *Fault {
	return &Fault{
		Kind:    KindStorage,
		Message: fmt.Sprintf("query failed: %v", err),
		Err:     fmt.Errorf("%w: %w", ErrQueryFailed, err),
	}
}

// SchemaMismatch reports live schema drift. column is empty when the whole
// table is missing; found lists what the introspection actually saw.
func SchemaMismatch(table, column string, found []string) *Fault {
	var msg string
	if column == "" {
		msg = fmt.Sprintf("table %q not present (tables found: %s)", table, strings.Join(found, ", "))
	} else {
		msg = fmt.Sprintf("table %q has no column %q (columns found: %s)", table, column, strings.Join(found, ", "))
	}
	return &Fault{
		Kind:        KindStorage,
		Message:     msg,
		Remediation: "the store layout may have changed in an OS update; check for a newer release",
		Err:         ErrSchemaMismatch,
	}
}

// MalformedCursor reports a continuation token that did not come from this
// system's encoder.
func MalformedCursor(err error) *Fault {
	return &Fault{
		Kind:    KindValidation,
		Message: "malformed cursor",
		Err:     fmt.Errorf("%w: %w", ErrMalformedCursor, err),
	}
}

// MissingField reports a required input field that was absent.
func MissingField(name string) *Fault {
	return &Fault{
		Kind:    KindValidation,
		Message: fmt.Sprintf("%s is required", name),
	}
}

// BadField reports an input field that was present but malformed.
func BadField(name, reason string) *Fault {
	return &Fault{
		Kind:    KindValidation,
		Message: fmt.Sprintf("invalid %s: %s", name, reason),
	}
}

// UnknownField reports a requested projection field outside the allowed set.
func UnknownField(name string, allowed []string) *Fault {
	return &Fault{
		Kind:    KindValidation,
		Message: fmt.Sprintf("unknown field %q (allowed: %s)", name, strings.Join(allowed, ", ")),
	}
}

// NotFound reports a resource identifier absent from the backend.
func NotFound(resource, id string) *Fault {
	return &Fault{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %q not found", resource, id),
	}
}

// Unsupported reports an operation the selected backend variant can never
// serve. reason explains the architectural limitation.
func Unsupported(domain, op, reason string) *Fault {
	return &Fault{
		Kind:    KindUnsupported,
		Message: fmt.Sprintf("%s.%s is not supported by the selected backend: %s", domain, op, reason),
	}
}
