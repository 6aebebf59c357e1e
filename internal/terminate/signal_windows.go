package terminate

import (
	"errors"
	"fmt"
	"os"
)

func classifySignalError(pid int, err error) error {
	if errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("%w: pid %d", ErrNoSuchProcess, pid)
	}
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: pid %d", ErrPermission, pid)
	}
	return fmt.Errorf("failed to kill pid %d: %w", pid, err)
}
