// ABOUTME: Package doc for the notes domain.

// Package notes exposes the Notes store and application as one service.
package notes
