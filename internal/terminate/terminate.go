// Package terminate force-kills processes and accounts for the outcome.
package terminate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrProtectedPID is returned for PID 1 and below and for our own PID.
	ErrProtectedPID = errors.New("refusing to kill protected process")
	// ErrNoSuchProcess means the PID was already gone.
	ErrNoSuchProcess = errors.New("no such process")
	// ErrPermission means the OS refused to signal the process.
	ErrPermission = errors.New("permission denied")
	// ErrExitTimeout means the process outlived the wait timeout.
	ErrExitTimeout = errors.New("process still running after kill signal")
)

const (
	// DefaultWaitTimeout bounds each kill, including the wait for exit.
	DefaultWaitTimeout = 5 * time.Second
	// DefaultPollInterval is how often a killed process is checked for exit.
	DefaultPollInterval = 100 * time.Millisecond
)

// Killer sends the strongest termination signal the OS offers to pid and
// returns nil once the process is observed gone.
type Killer interface {
	Kill(ctx context.Context, pid int) error
}

// Result is the fate of one PID.
type Result struct {
	PID int
	Err error
}

// OK reports whether the process was killed.
func (r Result) OK() bool {
	return r.Err == nil
}

// Outcome tallies one termination batch.
type Outcome struct {
	SuccessCount int
	FailCount    int
	Results      []Result
}

// Failed returns the results that did not succeed.
func (o Outcome) Failed() []Result {
	var failed []Result
	for _, r := range o.Results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Executor runs a best-effort kill pass over a PID set.
type Executor struct {
	killer      Killer
	waitTimeout time.Duration
	parallelism int
	selfPID     int
}

// Option configures an Executor.
type Option func(*Executor)

// WithWaitTimeout bounds how long each PID may take to disappear.
func WithWaitTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.waitTimeout = d
		}
	}
}

// WithParallelism sets how many PIDs are killed concurrently; 1 is
// sequential.
func WithParallelism(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// NewExecutor creates an Executor around killer.
func NewExecutor(killer Killer, opts ...Option) *Executor {
	e := &Executor{
		killer:      killer,
		waitTimeout: DefaultWaitTimeout,
		parallelism: 1,
		selfPID:     os.Getpid(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Terminate kills every PID in pids. Duplicates are collapsed, so
// SuccessCount+FailCount equals the number of distinct PIDs. One failure
// never stops the others. Results are ordered by PID.
func (e *Executor) Terminate(ctx context.Context, pids []int) Outcome {
	unique := make([]int, 0, len(pids))
	seen := make(map[int]bool)
	for _, pid := range pids {
		if !seen[pid] {
			seen[pid] = true
			unique = append(unique, pid)
		}
	}
	sort.Ints(unique)

	results := make([]Result, len(unique))

	if e.parallelism <= 1 {
		for i, pid := range unique {
			results[i] = e.terminateOne(ctx, pid)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.parallelism)
		for i, pid := range unique {
			g.Go(func() error {
				results[i] = e.terminateOne(ctx, pid)
				return nil
			})
		}
		_ = g.Wait()
	}

	outcome := Outcome{Results: results}
	for _, r := range results {
		if r.OK() {
			outcome.SuccessCount++
		} else {
			outcome.FailCount++
		}
	}
	return outcome
}

func (e *Executor) terminateOne(ctx context.Context, pid int) Result {
	if pid <= 1 || pid == e.selfPID {
		return Result{PID: pid, Err: fmt.Errorf("%w: pid %d", ErrProtectedPID, pid)}
	}

	if err := ctx.Err(); err != nil {
		return Result{PID: pid, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, e.waitTimeout)
	defer cancel()

	if err := e.killer.Kill(ctx, pid); err != nil {
		log.Warn().Err(err).Int("pid", pid).Msg("failed to kill process")
		return Result{PID: pid, Err: err}
	}

	log.Debug().Int("pid", pid).Msg("sent SIGKILL to process")
	return Result{PID: pid}
}
