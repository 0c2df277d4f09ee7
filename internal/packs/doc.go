// ABOUTME: Package doc for the tool pack registry.

// Package packs defines the tool surface: definitions, in-process
// handlers, and the registry the server lists and dispatches through.
package packs
