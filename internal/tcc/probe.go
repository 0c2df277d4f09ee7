// ABOUTME: Heuristic probes for macOS privacy grants: broad file access by
// ABOUTME: attempting protected reads, automation by a trivial round-trip.

package tcc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/grimoire/internal/fault"
	"github.com/2389/grimoire/internal/osa"
)

// RemediationFullDisk tells the user how to grant broad file access.
const RemediationFullDisk = "Grant Full Disk Access to this process in " +
	"System Settings > Privacy & Security > Full Disk Access, then restart it"

// RemediationAutomation tells the user how to let this process script app.
func RemediationAutomation(app string) string {
	return fmt.Sprintf("Allow this process to control %s in "+
		"System Settings > Privacy & Security > Automation", app)
}

// Probe infers privacy-grant state by attempting the guarded action
// itself. There is no authoritative TCC query available to an
// unprivileged, ad-hoc-signed process, so every answer here is a
// best-effort hint: callers use it to pick the likely-working path and to
// pre-empt doomed calls with a clear message, never as a guarantee.
// Results are not cached; callers needing stability cache them.
type Probe struct {
	// Paths is the protected-file list read by FullDiskAccess. At least
	// one entry lies outside every domain this system serves, so the
	// probe stays decoupled from the capability it guards.
	Paths []string
}

// New builds a probe over the current user's protected paths.
func New() *Probe {
	home, err := os.UserHomeDir()
	if err != nil {
		return &Probe{}
	}
	return &Probe{Paths: ProtectedPaths(home)}
}

// ProtectedPaths lists known TCC-guarded files under home. Safari's
// bookmarks and the TCC database itself are outside the served domains;
// the Messages store doubles as an in-domain check.
func ProtectedPaths(home string) []string {
	return []string{
		filepath.Join(home, "Library", "Safari", "Bookmarks.plist"),
		filepath.Join(home, "Library", "Application Support", "com.apple.TCC", "TCC.db"),
		filepath.Join(home, "Library", "Messages", "chat.db"),
	}
}

// FullDiskAccess reports whether broad file access currently works: true
// as soon as any known protected file yields a read, false when none do.
// TCC hides guarded files in ways indistinguishable from absence, so a
// false here may also just mean the files do not exist on this system.
func (p *Probe) FullDiskAccess() bool {
	for _, path := range p.Paths {
		if readable(path) {
			return true
		}
	}
	return false
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var one [1]byte
	_, err = f.Read(one[:])
	return err == nil || errors.Is(err, io.EOF)
}

// Scripter runs one automation script. *osa.Engine satisfies it.
type Scripter interface {
	Run(ctx context.Context, script string) (string, error)
}

// Automation probes per-application automation permission for app with a
// trivial round-trip. nil means the permission works end to end. An
// authorization refusal comes back as a permission fault carrying the
// Automation remediation; any other failure passes through unclassified,
// because that failure — not this probe — is the authoritative signal.
func (p *Probe) Automation(ctx context.Context, s Scripter, app string) error {
	script := fmt.Sprintf("tell application %s to return name", osa.Quote(app))
	_, err := s.Run(ctx, script)
	if err == nil {
		return nil
	}
	if isAutomationDenied(err) {
		return fault.Permission(
			fmt.Sprintf("not authorized to automate %s", app),
			RemediationAutomation(app))
	}
	return err
}

// isAutomationDenied matches the interpreter's refusal to send Apple
// events: error -1743, "Not authorized to send Apple events".
func isAutomationDenied(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "-1743") ||
		strings.Contains(msg, "Not authorized to send Apple events") ||
		strings.Contains(msg, "not authorized to send Apple events")
}
