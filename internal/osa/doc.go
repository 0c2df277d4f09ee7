// Package osa executes AppleScript against macOS applications through the
// osascript interpreter, with strict serialization, timeout, and
// cancellation semantics.
//
// # Serialization
//
// Every invocation in the process flows through one Engine and runs alone:
// the automated applications (Messages, Notes, Mail, ...) are not designed
// for concurrent automation sessions, and interleaving scripts against them
// has produced hangs and corrupted state. Concurrent callers queue on a
// one-slot semaphore and remain cancellable while queued.
//
// # Timeouts and cancellation
//
// Run applies the engine's configured timeout; RunTimeout races an explicit
// one. When the timer fires the subprocess is terminated through its exec
// context and the call fails with the timeout fault. Caller cancellation is
// checked before spawning and again after the subprocess exits; the engine's
// documented policy is that cancellation wins after exit — a result whose
// caller has already cancelled is discarded. Cancellation surfaces as the
// context's own error, not a taxonomy fault: the caller asked to stop, so
// nothing went wrong that needs classifying.
//
// # Failure shape
//
// A non-zero interpreter exit becomes an execution fault carrying the
// captured stderr verbatim; successful runs return stdout trimmed of
// surrounding whitespace, with empty output a valid result. The engine
// never retries: scripted actions such as sending a message are not
// idempotent, so retry policy belongs to a caller that understands the
// side effects.
//
// # Script construction
//
// Quote and Tell build scripts from caller data safely; ParseRecords and
// Field read the tab-separated, newline-delimited output convention used by
// list-shaped scripts.
package osa
