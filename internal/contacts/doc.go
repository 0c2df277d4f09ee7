// ABOUTME: Package doc for the contacts domain.

// Package contacts exposes the address book store, read-only.
package contacts
