// ABOUTME: Package doc for the reminders domain.

// Package reminders exposes the Reminders store and application as one
// service.
package reminders
