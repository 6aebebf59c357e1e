package volume

import (
	"context"
	"fmt"
	"strings"

	"github.com/sigreer/devolume/internal/command"
)

// diskutilProperties asks macOS diskutil about each mount.
type diskutilProperties struct {
	exec command.Executor
}

func (d *diskutilProperties) Properties(ctx context.Context, m Mount) (Properties, error) {
	out, err := d.exec.Output(ctx, "diskutil", "info", m.Path)
	if err != nil {
		return Properties{}, fmt.Errorf("diskutil info %s failed: %w", m.Path, err)
	}
	return parseDiskutilInfo(string(out)), nil
}

// parseDiskutilInfo reads the "Key: Value" report printed by diskutil info.
func parseDiskutilInfo(output string) Properties {
	fields := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	var props Properties

	if name, ok := fields["Volume Name"]; ok && name != "" && !strings.HasPrefix(name, "Not applicable") {
		props.LocalizedName = ptr(name)
	}

	switch fields["Removable Media"] {
	case "Removable":
		props.Removable = ptr(true)
	case "Fixed":
		props.Removable = ptr(false)
	}

	if v, ok := yesNo(fields["Ejectable"]); ok {
		props.Ejectable = ptr(v)
	}

	switch fields["Device Location"] {
	case "Internal":
		props.Internal = ptr(true)
	case "External":
		props.Internal = ptr(false)
	default:
		if v, ok := yesNo(fields["Internal"]); ok {
			props.Internal = ptr(v)
		}
	}

	if mp, ok := fields["Mount Point"]; ok && mp != "" {
		props.RootFS = ptr(mp == "/")
	}

	return props
}

func yesNo(s string) (value, ok bool) {
	switch strings.ToLower(s) {
	case "yes":
		return true, true
	case "no":
		return false, true
	}
	return false, false
}
