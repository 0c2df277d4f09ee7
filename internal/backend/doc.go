// ABOUTME: Package backend defines the variant-kind vocabulary used by
// ABOUTME: every hybrid domain composition.

// Package backend models which concrete variant serves each domain
// operation.
//
// A domain defines its full operation interface once; variants (automation,
// file, framework) each implement some subset. The hybrid composition
// routes every operation per an explicit Assignment fixed at construction
// time — an operation the assigned variant cannot serve fails with a typed
// unsupported error, never a silent empty result, and no call ever falls
// back to another variant at runtime.
package backend
