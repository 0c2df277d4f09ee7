// ABOUTME: Package tcc infers macOS privacy-grant state heuristically and
// ABOUTME: builds remediation strings for permission errors.

// Package tcc probes the privacy permissions this process depends on.
//
// There is no authoritative TCC query for an unprivileged, ad-hoc-signed
// process, so the probes attempt the guarded action itself: reading a
// known protected file for Full Disk Access, a trivial script round-trip
// for per-application automation. Every answer is a hint used to pick the
// likely-working path; the underlying operation's own failure remains the
// authoritative signal. Nothing here is cached.
package tcc
