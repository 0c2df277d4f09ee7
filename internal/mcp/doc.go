// Package mcp serves the registered tools over the Model Context
// Protocol: JSON-RPC 2.0 carried by either the Streamable HTTP transport
// (single /mcp endpoint with session management) or newline-delimited
// stdio for clients that spawn the process directly.
//
// Tool failures from the shared error taxonomy surface as tool results
// with isError set, keeping JSON-RPC errors for protocol-level problems
// only.
package mcp
