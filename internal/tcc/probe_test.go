// ABOUTME: Probe tests: protected-path reads staged in temp dirs and
// ABOUTME: automation denial classification with fake scripters.

package tcc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/grimoire/internal/fault"
)

func TestFullDiskAccessFalseWhenNothingReadable(t *testing.T) {
	home := t.TempDir() // no Library tree at all
	p := &Probe{Paths: ProtectedPaths(home)}
	assert.False(t, p.FullDiskAccess())
}

func TestFullDiskAccessTrueWhenAnyPathReadable(t *testing.T) {
	home := t.TempDir()
	paths := ProtectedPaths(home)

	// Stage just one of the protected files.
	target := paths[len(paths)-1]
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o600))

	p := &Probe{Paths: paths}
	assert.True(t, p.FullDiskAccess())
}

func TestFullDiskAccessIgnoresUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root reads through permission bits")
	}
	home := t.TempDir()
	paths := ProtectedPaths(home)
	target := paths[0]
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o000))

	p := &Probe{Paths: paths}
	assert.False(t, p.FullDiskAccess(), "a file that exists but cannot be read is not access")
}

func TestProtectedPathsIncludeOutOfDomainFiles(t *testing.T) {
	paths := ProtectedPaths("/Users/x")
	// The probe must not depend solely on the stores it serves, or it
	// could never distinguish "no permission" from "no data".
	var outOfDomain int
	for _, p := range paths {
		if filepath.Base(p) != "chat.db" {
			outOfDomain++
		}
	}
	assert.GreaterOrEqual(t, outOfDomain, 1)
}

// scriptFunc adapts a function to the Scripter interface.
type scriptFunc func(ctx context.Context, script string) (string, error)

func (f scriptFunc) Run(ctx context.Context, script string) (string, error) { return f(ctx, script) }

func TestAutomationGranted(t *testing.T) {
	s := scriptFunc(func(_ context.Context, script string) (string, error) {
		assert.Contains(t, script, `"Messages"`)
		return "Messages", nil
	})
	err := (&Probe{}).Automation(context.Background(), s, "Messages")
	assert.NoError(t, err)
}

func TestAutomationDeniedClassifiedWithRemediation(t *testing.T) {
	s := scriptFunc(func(context.Context, string) (string, error) {
		return "", fault.ExecutionFailed(
			"execution error: Not authorized to send Apple events to Messages. (-1743)",
			errors.New("exit status 1"))
	})
	err := (&Probe{}).Automation(context.Background(), s, "Messages")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrPermission))
	assert.Contains(t, err.Error(), "Automation")
	assert.Contains(t, err.Error(), "Messages")
}

func TestAutomationOtherFailurePassesThrough(t *testing.T) {
	// Application not installed, hung, anything else: the real failure is
	// the authoritative signal and must not be masked as permission.
	cause := fault.ExecutionFailed("Messages got an error: Application isn't running. (-600)", errors.New("exit status 1"))
	s := scriptFunc(func(context.Context, string) (string, error) { return "", cause })

	err := (&Probe{}).Automation(context.Background(), s, "Messages")
	require.Error(t, err)
	assert.False(t, errors.Is(err, fault.ErrPermission))
	assert.True(t, errors.Is(err, fault.ErrExecution))
}
