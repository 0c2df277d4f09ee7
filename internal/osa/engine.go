// ABOUTME: Serialized execution engine for automation scripts: one script
// ABOUTME: at a time, with timeout and cancellation semantics.

package osa

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/2389/grimoire/internal/fault"
)

// DefaultTimeout bounds a script run when the caller does not supply its
// own deadline. Automated applications routinely stall for seconds while
// they launch or sync; thirty seconds separates "slow" from "hung".
const DefaultTimeout = 30 * time.Second

// Config configures an Engine.
type Config struct {
	// Runner executes scripts. Nil means a real ExecRunner.
	Runner Runner
	// Logger receives engine events. Nil means slog.Default().
	Logger *slog.Logger
	// Timeout applies to Run calls. Zero means DefaultTimeout; negative
	// disables the engine-level deadline entirely.
	Timeout time.Duration
	// QueueWarnThreshold logs a warning when this many callers are already
	// waiting for the slot. Zero disables the check.
	QueueWarnThreshold int
}

// Engine serializes every automation invocation in the process through one
// execution point. The applications being automated cannot tolerate
// concurrent automation sessions — interleaved invocations hang or corrupt
// them — so concurrent callers queue and run one at a time. Throughput is
// deliberately sacrificed; pagination in the domain layers is the
// mitigation.
//
// There is exactly one Engine per process, owned by the composition root
// and injected where needed.
type Engine struct {
	runner        Runner
	logger        *slog.Logger
	timeout       time.Duration
	warnThreshold int

	// slot is a one-place semaphore. Goroutines blocked on the send are
	// released in arrival order.
	slot chan struct{}

	// waiting counts callers queued on the slot.
	waiting atomic.Int64
}

// New creates an Engine from cfg, filling defaults for unset fields.
func New(cfg Config) *Engine {
	runner := cfg.Runner
	if runner == nil {
		runner = &ExecRunner{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		runner:        runner,
		logger:        logger,
		timeout:       timeout,
		warnThreshold: cfg.QueueWarnThreshold,
		slot:          make(chan struct{}, 1),
	}
}

// Run executes script under the engine's configured timeout and returns
// stdout trimmed of surrounding whitespace. Absent output yields an empty
// string, not an error.
func (e *Engine) Run(ctx context.Context, script string) (string, error) {
	return e.run(ctx, script, e.timeout)
}

// RunTimeout executes script racing an explicit deadline. If the timer
// fires first the subprocess is terminated and the call fails with the
// timeout kind. A non-positive timeout disables the engine-level deadline;
// the caller's context still applies.
func (e *Engine) RunTimeout(ctx context.Context, script string, timeout time.Duration) (string, error) {
	return e.run(ctx, script, timeout)
}

// run holds the execution slot for the duration of one subprocess.
//
// Cancellation policy: cancellation wins after exit. If the caller's
// context is observed cancelled once the subprocess has finished — even
// successfully — the result is discarded and the context's error returned,
// so a caller never receives a success it no longer wants. Queued callers
// remain cancellable while waiting for the slot.
func (e *Engine) run(ctx context.Context, script string, timeout time.Duration) (string, error) {
	// Cheap abort before queuing or spawning.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if depth := e.waiting.Add(1); e.warnThreshold > 0 && depth > int64(e.warnThreshold) {
		e.logger.Warn("automation queue backed up", "depth", depth)
	}
	waitStart := time.Now()
	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		e.waiting.Add(-1)
		return "", ctx.Err()
	}
	e.waiting.Add(-1)
	defer func() { <-e.slot }()

	if waited := time.Since(waitStart); waited > 500*time.Millisecond {
		e.logger.Debug("automation call queued behind another", "waited", waited)
	}

	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	stdout, stderr, err := e.runner.Run(execCtx, script)
	elapsed := time.Since(start)

	// Caller cancellation takes precedence over whatever the subprocess
	// did, including finishing cleanly.
	if ctxErr := ctx.Err(); ctxErr != nil {
		e.logger.Debug("automation call cancelled", "elapsed", elapsed)
		return "", ctxErr
	}
	if err != nil {
		if timeout > 0 && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			e.logger.Warn("automation script timed out", "timeout", timeout)
			return "", fault.Timeout(timeout)
		}
		e.logger.Warn("automation script failed", "elapsed", elapsed, "stderr_bytes", len(stderr))
		return "", fault.ExecutionFailed(stderr, err)
	}

	return strings.TrimSpace(stdout), nil
}
