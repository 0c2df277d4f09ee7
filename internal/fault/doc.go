// Package fault defines the error taxonomy shared by every backend layer:
// permission, execution, timeout, storage, validation, not-found, and
// unsupported-by-backend kinds, matched with errors.Is against kind
// sentinels. Nothing above the domain layer sees a raw subprocess, SQL, or
// filesystem error.
package fault
