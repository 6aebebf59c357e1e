// Package volume enumerates mounted filesystems and reduces them to the set of
// externally attached, non-system volumes a user might want to eject.
package volume

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// SystemPrefixes are mount path prefixes that are never offered, whatever
// their removable/ejectable flags say.
var SystemPrefixes = []string{
	"/System",
	"/private",
	"/home",
	"/net",
	"/Network",
	"/dev",
	"/Volumes/Recovery",
}

// DefaultExternalPrefixes returns the mount roots under which the host OS
// attaches external media.
func DefaultExternalPrefixes() []string {
	switch runtime.GOOS {
	case "linux":
		return []string{"/media/", "/run/media/", "/mnt/"}
	default:
		return []string{"/Volumes/"}
	}
}

// Volume is an external volume eligible for handle probing.
type Volume struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Device     string `json:"device,omitempty"`
	FSType     string `json:"fs_type,omitempty"`
	TotalBytes uint64 `json:"total_bytes,omitempty"`
}

// Mount is one entry of the OS mount table.
type Mount struct {
	Path   string
	Device string
	FSType string
	Hidden bool
}

// Properties are the per-mount attributes the filter looks at. Nil pointers
// mean the platform could not tell.
type Properties struct {
	Removable     *bool
	Ejectable     *bool
	Internal      *bool
	RootFS        *bool
	LocalizedName *string
	TotalBytes    uint64
}

func (p Properties) removable() bool { return p.Removable != nil && *p.Removable }
func (p Properties) ejectable() bool { return p.Ejectable != nil && *p.Ejectable }
func (p Properties) rootFS() bool    { return p.RootFS != nil && *p.RootFS }

// internal defaults to true when unknown.
func (p Properties) internal() bool { return p.Internal == nil || *p.Internal }

// DisplayName is the localized volume name, or the last component of path
// when the platform reported none.
func (p Properties) DisplayName(path string) string {
	if p.LocalizedName != nil {
		return *p.LocalizedName
	}
	return filepath.Base(path)
}

// Enumerator reads the live mount table.
type Enumerator interface {
	Mounts(ctx context.Context) ([]Mount, error)
	Properties(ctx context.Context, m Mount) (Properties, error)
}

// Filter reports whether a mount at path with the given properties is an
// external volume. The checks short-circuit in order: root filesystem,
// system prefix, then external-ness under one of externalPrefixes.
func Filter(path string, p Properties, externalPrefixes []string) bool {
	if p.rootFS() || path == "/" {
		return false
	}
	for _, prefix := range SystemPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	if p.internal() && !p.removable() && !p.ejectable() {
		return false
	}
	for _, prefix := range externalPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Lister produces the sorted external volume set.
type Lister struct {
	enum     Enumerator
	prefixes []string
}

// NewLister creates a Lister. An empty prefix list selects
// DefaultExternalPrefixes.
func NewLister(enum Enumerator, externalPrefixes []string) *Lister {
	if len(externalPrefixes) == 0 {
		externalPrefixes = DefaultExternalPrefixes()
	}
	return &Lister{enum: enum, prefixes: externalPrefixes}
}

// List returns the external volumes sorted by name, then path. The error is
// non-nil only when the mount table itself could not be read; mounts whose
// properties cannot be fetched are logged and skipped.
func (l *Lister) List(ctx context.Context) ([]Volume, error) {
	volumes := []Volume{}

	mounts, err := l.enum.Mounts(ctx)
	if err != nil {
		return volumes, fmt.Errorf("failed to enumerate mounts: %w", err)
	}

	for _, m := range mounts {
		if m.Hidden {
			continue
		}

		props, err := l.enum.Properties(ctx, m)
		if err != nil {
			log.Warn().Err(err).Str("path", m.Path).Msg("error reading volume properties")
			continue
		}

		if !Filter(m.Path, props, l.prefixes) {
			continue
		}

		v := Volume{
			Name:       props.DisplayName(m.Path),
			Path:       m.Path,
			Device:     m.Device,
			FSType:     m.FSType,
			TotalBytes: props.TotalBytes,
		}
		log.Debug().Str("name", v.Name).Str("path", v.Path).Msg("added volume")
		volumes = append(volumes, v)
	}

	Sort(volumes)

	if len(volumes) == 0 {
		log.Debug().Msg("no external volumes found")
	}
	return volumes, nil
}

// Sort orders volumes by display name with path as the tie-break.
func Sort(volumes []Volume) {
	sort.SliceStable(volumes, func(i, j int) bool {
		if volumes[i].Name != volumes[j].Name {
			return volumes[i].Name < volumes[j].Name
		}
		return volumes[i].Path < volumes[j].Path
	})
}

func ptr[T any](v T) *T {
	return &v
}
