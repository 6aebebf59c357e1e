//go:build !windows

package terminate

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func classifySignalError(pid int, err error) error {
	switch {
	case errors.Is(err, unix.ESRCH), errors.Is(err, os.ErrProcessDone):
		return fmt.Errorf("%w: pid %d", ErrNoSuchProcess, pid)
	case errors.Is(err, unix.EPERM):
		return fmt.Errorf("%w: pid %d", ErrPermission, pid)
	}
	return fmt.Errorf("failed to kill pid %d: %w", pid, err)
}
