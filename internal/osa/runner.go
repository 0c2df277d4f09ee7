// ABOUTME: Runner abstraction over the osascript subprocess so the engine
// ABOUTME: can be tested with fakes that never fork.

package osa

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// DefaultInterpreter is where macOS installs the AppleScript interpreter.
const DefaultInterpreter = "/usr/bin/osascript"

// Runner executes one script and returns its captured stdout and stderr.
// A non-zero exit returns the captured streams alongside a non-nil error;
// the engine above decides how to classify it.
type Runner interface {
	Run(ctx context.Context, script string) (stdout, stderr string, err error)
}

// ExecRunner invokes the real interpreter as a subprocess with the script
// passed as a command-line argument. The exec context terminates the
// subprocess on cancellation; WaitDelay bounds how long Wait lingers on
// inherited pipes after the kill.
type ExecRunner struct {
	// Path overrides the interpreter location. Empty means
	// DefaultInterpreter.
	Path string
}

func (r *ExecRunner) Run(ctx context.Context, script string) (string, string, error) {
	path := r.Path
	if path == "" {
		path = DefaultInterpreter
	}

	cmd := exec.CommandContext(ctx, path, "-e", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
