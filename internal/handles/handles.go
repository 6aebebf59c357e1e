// Package handles finds the processes holding open files under a path.
package handles

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrProbeFailed means the open-files query could not produce output.
	ErrProbeFailed = errors.New("handle probe failed")
	// ErrProbeTimeout means the open-files query ran past its deadline.
	ErrProbeTimeout = errors.New("handle probe timed out")
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 10 * time.Second

// ProcessInfo is a process holding at least one handle under the probed path.
type ProcessInfo struct {
	Name     string `json:"name"`
	PID      int    `json:"pid"`
	Selected bool   `json:"selected"`
}

// Source returns lsof-shaped text for path: a header line followed by one
// "<command> <pid> ..." line per open handle.
type Source interface {
	Query(ctx context.Context, path string) ([]byte, error)
}

// Parse turns open-files output into one ProcessInfo per PID, in order of
// first appearance. The header line and any line without a command and a
// numeric PID are ignored.
func Parse(output []byte) []ProcessInfo {
	processes := []ProcessInfo{}
	seen := make(map[int]bool)

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		pid, err := strconv.ParseUint(fields[1], 10, 31)
		if err != nil {
			continue
		}
		if seen[int(pid)] {
			continue
		}
		seen[int(pid)] = true

		processes = append(processes, ProcessInfo{
			Name:     fields[0],
			PID:      int(pid),
			Selected: true,
		})
	}

	return processes
}

// Prober runs a Source with a deadline and parses the result.
type Prober struct {
	source  Source
	timeout time.Duration
}

// NewProber creates a Prober. A zero timeout selects DefaultTimeout.
func NewProber(source Source, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{source: source, timeout: timeout}
}

// Probe lists the processes with handles open under path. On failure it
// returns an empty slice and an error wrapping ErrProbeFailed or
// ErrProbeTimeout; it never modifies anything.
func (p *Prober) Probe(ctx context.Context, path string) ([]ProcessInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.source.Query(ctx, path)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return []ProcessInfo{}, fmt.Errorf("%w after %s: %s", ErrProbeTimeout, p.timeout, path)
		}
		return []ProcessInfo{}, fmt.Errorf("%w: %s: %w", ErrProbeFailed, path, err)
	}

	processes := Parse(out)
	log.Debug().Str("path", path).Int("processes", len(processes)).Msg("probed open handles")
	return processes, nil
}
