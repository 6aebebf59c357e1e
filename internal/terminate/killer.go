package terminate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v4/process"
)

// signalTarget is the part of *process.Process the killer drives.
type signalTarget interface {
	KillWithContext(ctx context.Context) error
	IsRunningWithContext(ctx context.Context) (bool, error)
	StatusWithContext(ctx context.Context) ([]string, error)
}

// ProcessKiller sends SIGKILL (TerminateProcess on Windows) through gopsutil
// and polls until the target is gone. A process counts as gone once it no
// longer exists or is a zombie waiting for its parent to reap it; its exit
// status is not available to a non-parent and is not consulted.
type ProcessKiller struct {
	clock        clockwork.Clock
	pollInterval time.Duration
	find         func(ctx context.Context, pid int32) (signalTarget, error)
}

// NewProcessKiller creates a killer polling every pollInterval.
func NewProcessKiller(pollInterval time.Duration) *ProcessKiller {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &ProcessKiller{
		clock:        clockwork.NewRealClock(),
		pollInterval: pollInterval,
		find:         findProcess,
	}
}

func findProcess(ctx context.Context, pid int32) (signalTarget, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Kill signals pid and waits, bounded by ctx, for it to disappear.
func (k *ProcessKiller) Kill(ctx context.Context, pid int) error {
	proc, err := k.find(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return fmt.Errorf("%w: pid %d", ErrNoSuchProcess, pid)
		}
		return fmt.Errorf("failed to find pid %d: %w", pid, err)
	}

	if err := proc.KillWithContext(ctx); err != nil {
		return classifySignalError(pid, err)
	}

	return k.waitGone(ctx, proc, pid)
}

func (k *ProcessKiller) waitGone(ctx context.Context, proc signalTarget, pid int) error {
	ticker := k.clock.NewTicker(k.pollInterval)
	defer ticker.Stop()

	for {
		if gone(ctx, proc) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: pid %d", ErrExitTimeout, pid)
		case <-ticker.Chan():
		}
	}
}

func gone(ctx context.Context, proc signalTarget) bool {
	running, err := proc.IsRunningWithContext(ctx)
	if err == nil && !running {
		return true
	}
	status, err := proc.StatusWithContext(ctx)
	return err == nil && slices.Contains(status, process.Zombie)
}
