package handles

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sigreer/devolume/internal/command"
)

// DefaultLsofPath is resolved against PATH.
const DefaultLsofPath = "lsof"

// LsofSource queries lsof. When given a mount point lsof reports every open
// file on that filesystem.
type LsofSource struct {
	path string
	exec command.Executor
}

// NewLsofSource creates a source running the lsof binary at path.
func NewLsofSource(path string, exec command.Executor) *LsofSource {
	if path == "" {
		path = DefaultLsofPath
	}
	return &LsofSource{path: path, exec: exec}
}

// Query runs lsof -w <target>. lsof exits 1 both when nothing holds the
// target and when it could not stat it; the two are told apart by stderr,
// since -w silences warnings.
func (s *LsofSource) Query(ctx context.Context, target string) ([]byte, error) {
	out, err := s.exec.Output(ctx, s.path, "-w", target)
	if err == nil {
		return out, nil
	}

	var exitErr *command.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	stderr := bytes.TrimSpace(exitErr.Stderr)
	if len(bytes.TrimSpace(out)) == 0 && len(stderr) > 0 {
		return nil, fmt.Errorf("%s: %s", s.path, stderr)
	}

	log.Debug().Str("path", target).Int("stdout_bytes", len(out)).Msg("lsof exited 1, using captured output")
	return out, nil
}
