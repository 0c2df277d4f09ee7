// Package fields validates client-requested output projections against a
// per-tool whitelist and applies the chosen projection to result records.
package fields
