// Package appledb opens and queries the private SQLite files that macOS
// applications keep under the user's home directory, without trusting
// their schema to be stable.
//
// # Defensive posture
//
// These files belong to the OS, not to this process: their layout is
// undocumented, changes silently across OS updates, and the owning
// application may hold locks at any moment. The package therefore
//
//   - opens read-only by default and checks existence first, so "missing"
//     (database-missing fault, or permission-denied when the broad
//     file-access probe says the file is likely hidden) stays separate
//     from "present but unreadable";
//   - applies a busy timeout so transient lock contention is retried
//     inside the engine instead of failing the call;
//   - validates the live schema against the caller's expectations before
//     domain queries run, naming the exact missing table or column on
//     drift;
//   - returns dynamically-typed rows whose accessors tolerate absent
//     columns and loose column typing.
//
// # Connection scope
//
// A DB is scoped to one logical operation: open, validate, query, close.
// Connections are never pooled across calls. The handle may cross
// goroutines, but queries serialize on the single underlying connection.
// Context cancellation during a query ends the caller's wait via
// database/sql; the operation's own close path then closes the
// connection, so a cancelled call can surface as a query failure.
//
// # Time
//
// The stores count from 2001-01-01 UTC — seconds for the Core Data
// family, nanoseconds for Messages. Timestamp carries the converted value
// or, when conversion fails, the raw stored text; a row is never dropped
// over an unparseable date.
package appledb
