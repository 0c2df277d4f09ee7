// ABOUTME: Package doc for the messages domain.

// Package messages exposes the Messages history and application as one
// service: reads come from the private store, sends go through the
// application.
package messages
