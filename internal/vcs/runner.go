package vcs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single git invocation when no timeout is
// configured.
const DefaultTimeout = 30 * time.Second

// defaultBinary is the git executable name resolved via PATH.
const defaultBinary = "git"

// ErrTimeout reports that a git invocation exceeded its deadline. The
// failure is scoped to that one operation, not the engine.
var ErrTimeout = errors.New("git operation timed out")

// Runner executes git subcommands in a repository working directory.
type Runner struct {
	dir     string
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// RunnerOptions configures a Runner. Zero values use defaults.
type RunnerOptions struct {
	// Binary overrides the git executable. Empty uses "git" from PATH.
	Binary string

	// Timeout bounds each invocation. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger
}

// NewRunner creates a runner rooted at the given repository directory.
func NewRunner(dir string, opts RunnerOptions) *Runner {
	binary := opts.Binary
	if binary == "" {
		binary = defaultBinary
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{dir: dir, binary: binary, timeout: timeout, logger: logger}
}

// Run executes one git subcommand and returns its trimmed combined output.
// The invocation is killed when the per-operation timeout elapses.
func (r *Runner) Run(ctx context.Context, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.binary, args...)
	cmd.Dir = r.dir

	start := time.Now()

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))

	r.logger.Debug("git invocation",
		slog.String("args", strings.Join(args, " ")),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("failed", err != nil),
	)

	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			return output, fmt.Errorf("%w: git %s after %s", ErrTimeout, strings.Join(args, " "), r.timeout)
		}

		return output, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, output)
	}

	return output, nil
}

// conflictMarkers are the substrings git prints when an apply stops on
// conflicts.
var conflictMarkers = []string{
	"conflict",
	"CONFLICT",
	"could not apply",
	"needs merge",
}

// isConflictOutput reports whether git output indicates merge conflicts.
func isConflictOutput(output string) bool {
	for _, marker := range conflictMarkers {
		if strings.Contains(output, marker) {
			return true
		}
	}

	return false
}
