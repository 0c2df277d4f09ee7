// ABOUTME: Package doc for the calendar domain.

// Package calendar exposes the Calendar store and application as one
// service.
package calendar
