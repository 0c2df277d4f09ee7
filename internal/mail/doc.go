// ABOUTME: Package doc for the mail domain.

// Package mail exposes the Mail envelope index and application as one
// service.
package mail
