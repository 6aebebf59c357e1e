package handles

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// openFilesProcess is the slice of *process.Process the proc source needs.
type openFilesProcess interface {
	NameWithContext(ctx context.Context) (string, error)
	OpenFilesWithContext(ctx context.Context) ([]process.OpenFilesStat, error)
	CwdWithContext(ctx context.Context) (string, error)
}

type procEntry struct {
	pid  int32
	proc openFilesProcess
}

// ProcSource inspects every process's open files and working directory
// through gopsutil. It stands in for lsof where lsof is not installed and
// renders its findings in lsof's column layout.
type ProcSource struct {
	list func(ctx context.Context) ([]procEntry, error)
}

// NewProcSource creates a source over the host's process table.
func NewProcSource() *ProcSource {
	return &ProcSource{list: listProcesses}
}

func listProcesses(ctx context.Context) ([]procEntry, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	entries := make([]procEntry, 0, len(procs))
	for _, p := range procs {
		entries = append(entries, procEntry{pid: p.Pid, proc: p})
	}
	return entries, nil
}

// Query emits one line per handle under target. Processes that vanish or
// cannot be inspected are skipped.
func (s *ProcSource) Query(ctx context.Context, target string) ([]byte, error) {
	entries, err := s.list(ctx)
	if err != nil {
		return nil, err
	}

	root := filepath.Clean(target)

	var b bytes.Buffer
	b.WriteString("COMMAND PID FD NAME\n")

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name, err := e.proc.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		name = escapeCommand(name)

		if cwd, err := e.proc.CwdWithContext(ctx); err == nil && isUnder(cwd, root) {
			fmt.Fprintf(&b, "%s %d cwd %s\n", name, e.pid, cwd)
		}

		files, err := e.proc.OpenFilesWithContext(ctx)
		if err != nil {
			continue
		}
		for _, f := range files {
			if isUnder(f.Path, root) {
				fmt.Fprintf(&b, "%s %d %d %s\n", name, e.pid, f.Fd, f.Path)
			}
		}
	}

	return b.Bytes(), nil
}

// escapeCommand keeps a command name a single whitespace-free token, the way
// lsof prints them.
func escapeCommand(name string) string {
	return strings.Join(strings.Fields(name), `\x20`)
}

func isUnder(path, root string) bool {
	if path == root {
		return true
	}
	if root == "/" {
		return strings.HasPrefix(path, "/")
	}
	return strings.HasPrefix(path, root+"/")
}
