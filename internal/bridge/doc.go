// Package bridge wires configuration into a running server: one shared
// automation engine, one privacy probe, a service per enabled domain, the
// tool registry, token verification, and the HTTP or stdio MCP transport.
//
// Every domain shares the same engine so automation stays serialized
// process-wide. Disabled domains are skipped entirely; their tools never
// appear in the registry.
package bridge
