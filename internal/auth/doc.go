// ABOUTME: Package doc for authentication.

// Package auth verifies bearer tokens for the HTTP transport. Two
// verifier families exist: short-lived HS256 JWTs and named persistent
// tokens whose bcrypt hashes live in a YAML file. A Chain tries several
// verifiers in order so both families can be enabled at once.
package auth
