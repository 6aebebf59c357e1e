package volume

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// propertySource resolves the platform-specific attributes of a mount.
type propertySource interface {
	Properties(ctx context.Context, m Mount) (Properties, error)
}

// SystemEnumerator reads mounts from the host via gopsutil and asks the
// platform property source about each one.
type SystemEnumerator struct {
	props propertySource
}

// NewSystemEnumerator returns an enumerator for the current platform.
func NewSystemEnumerator() *SystemEnumerator {
	return &SystemEnumerator{props: newPlatformProperties()}
}

// Mounts lists physical (non-pseudo) filesystem mounts, one entry per mount
// point.
func (e *SystemEnumerator) Mounts(ctx context.Context) ([]Mount, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk partitions: %w", err)
	}

	mounts := make([]Mount, 0, len(partitions))
	seen := make(map[string]bool)
	for _, p := range partitions {
		if seen[p.Mountpoint] {
			continue
		}
		seen[p.Mountpoint] = true

		mounts = append(mounts, Mount{
			Path:   p.Mountpoint,
			Device: p.Device,
			FSType: p.Fstype,
			Hidden: isHidden(p.Mountpoint, p.Opts),
		})
	}
	return mounts, nil
}

// Properties returns the platform attributes of m plus its capacity. A
// failed usage query only leaves TotalBytes at zero.
func (e *SystemEnumerator) Properties(ctx context.Context, m Mount) (Properties, error) {
	props, err := e.props.Properties(ctx, m)
	if err != nil {
		return Properties{}, err
	}
	if usage, err := disk.UsageWithContext(ctx, m.Path); err == nil {
		props.TotalBytes = usage.Total
	}
	return props, nil
}

// isHidden mirrors what file managers skip: dot-directories and mounts the
// OS marked as not browsable.
func isHidden(path string, opts []string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	return slices.Contains(opts, "nobrowse")
}
