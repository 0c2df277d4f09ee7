// Package page provides the shared pagination vocabulary: opaque
// continuation cursors (Cursor) and paged result envelopes (Page). Every
// list-shaped domain operation speaks these types so callers see one
// pagination model regardless of which backend served the call.
package page
