// Package command wraps exec.Command behind a small interface so callers that
// shell out (lsof, diskutil) can be exercised with canned output in tests.
package command

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Executor runs external commands.
type Executor interface {
	// Output runs name with args and returns its standard output. A command
	// that started but exited non-zero yields an *ExitError alongside
	// whatever output was captured.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// LookPath resolves an executable name against PATH.
	LookPath(name string) (string, error)
}

// ExitError reports a command that ran and exited with a non-zero status.
type ExitError struct {
	Code   int
	Stderr []byte
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WaitDelay is how long Output waits for the child's pipes to close after
// the context kills it. Grandchildren holding stdout open would otherwise
// block Output past the deadline.
const WaitDelay = 500 * time.Millisecond

// Real executes commands on the host.
type Real struct{}

// Output runs the command with exec.CommandContext so a context deadline
// kills the child.
func (Real) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = WaitDelay
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return out, &ExitError{Code: exitErr.ExitCode(), Stderr: exitErr.Stderr, Err: err}
	}
	return out, err
}

// LookPath is exec.LookPath.
func (Real) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
