package terminate

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	mu      sync.Mutex
	killErr error
	running []bool // successive IsRunning answers; the last one repeats
	status  []string
	killed  bool
}

func (f *fakeTarget) KillWithContext(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = true
	return f.killErr
}

func (f *fakeTarget) IsRunningWithContext(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.running[0]
	if len(f.running) > 1 {
		f.running = f.running[1:]
	}
	return r, nil
}

func (f *fakeTarget) StatusWithContext(context.Context) ([]string, error) {
	return f.status, nil
}

func killerFor(clock clockwork.Clock, target *fakeTarget, findErr error) *ProcessKiller {
	return &ProcessKiller{
		clock:        clock,
		pollInterval: 100 * time.Millisecond,
		find: func(context.Context, int32) (signalTarget, error) {
			if findErr != nil {
				return nil, findErr
			}
			return target, nil
		},
	}
}

func TestKillGoneImmediately(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{running: []bool{false}}
	err := killerFor(clockwork.NewFakeClock(), target, nil).Kill(context.Background(), 500)
	require.NoError(t, err)
	assert.True(t, target.killed)
}

func TestKillWaitsForExit(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	target := &fakeTarget{running: []bool{true, false}}
	k := killerFor(clock, target, nil)

	done := make(chan error, 1)
	go func() { done <- k.Kill(context.Background(), 500) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(100 * time.Millisecond)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("kill did not return after the process exited")
	}
}

func TestKillZombieCountsAsGone(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{running: []bool{true}, status: []string{process.Zombie}}
	err := killerFor(clockwork.NewFakeClock(), target, nil).Kill(context.Background(), 500)
	require.NoError(t, err)
}

func TestKillTimesOut(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{running: []bool{true}, status: []string{process.Sleep}}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := killerFor(clockwork.NewFakeClock(), target, nil).Kill(ctx, 500)
	require.ErrorIs(t, err, ErrExitTimeout)
}

func TestKillClassifiesErrors(t *testing.T) {
	t.Parallel()

	err := killerFor(clockwork.NewFakeClock(), nil, process.ErrorProcessNotRunning).Kill(context.Background(), 501)
	require.ErrorIs(t, err, ErrNoSuchProcess)

	err = killerFor(clockwork.NewFakeClock(), nil, errors.New("proc unreadable")).Kill(context.Background(), 501)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSuchProcess)

	target := &fakeTarget{running: []bool{true}, killErr: os.ErrProcessDone}
	err = killerFor(clockwork.NewFakeClock(), target, nil).Kill(context.Background(), 501)
	require.ErrorIs(t, err, ErrNoSuchProcess)
}

func TestKillRealChild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sleep")
	}
	t.Parallel()

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	reaped := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(reaped)
	}()

	pid := cmd.Process.Pid
	k := NewProcessKiller(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, k.Kill(ctx, pid))

	select {
	case <-reaped:
	case <-ctx.Done():
		t.Fatal("child was not reaped")
	}

	err := k.Kill(ctx, pid)
	require.ErrorIs(t, err, ErrNoSuchProcess)
}
