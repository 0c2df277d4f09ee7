// ABOUTME: Package doc for the builtin tool packs.

// Package builtins assembles the per-domain tool packs served over MCP.
// Each pack wraps one domain service: handlers decode the tool arguments,
// validate them, call the service, and shape the JSON result. Domain
// errors pass through untouched so the transport can map them once.
package builtins
