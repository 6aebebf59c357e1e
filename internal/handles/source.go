package handles

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sigreer/devolume/internal/command"
)

// Probe backends.
const (
	BackendAuto   = "auto"
	BackendLsof   = "lsof"
	BackendProcfs = "procfs"
)

// NewSource builds the Source for backend. "auto" uses lsof when it can be
// found and falls back to the process-table source otherwise.
func NewSource(backend, lsofPath string, exec command.Executor) (Source, error) {
	switch backend {
	case BackendLsof:
		return NewLsofSource(lsofPath, exec), nil
	case BackendProcfs:
		return NewProcSource(), nil
	case BackendAuto, "":
		if lsofPath == "" {
			lsofPath = DefaultLsofPath
		}
		resolved, err := exec.LookPath(lsofPath)
		if err != nil {
			log.Info().Str("lsof", lsofPath).Msg("lsof not found, inspecting the process table instead")
			return NewProcSource(), nil
		}
		return NewLsofSource(resolved, exec), nil
	default:
		return nil, fmt.Errorf("unknown probe backend %q", backend)
	}
}
