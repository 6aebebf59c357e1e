package volume

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// hotplugBuses are sysfs path fragments of buses whose disks can be detached
// while the system runs.
var hotplugBuses = []string{"/usb", "/firewire", "/ieee1394", "/mmc_host/"}

// sysfsProperties derives mount attributes from sysfs and udev's by-label
// symlinks, without spawning any process.
type sysfsProperties struct {
	sysRoot string // normally /sys
	devRoot string // normally /dev
}

func (s *sysfsProperties) Properties(_ context.Context, m Mount) (Properties, error) {
	props := Properties{RootFS: ptr(m.Path == "/")}

	// Network, FUSE and similar mounts have no block device to inspect.
	if !strings.HasPrefix(m.Device, "/dev/") {
		return props, nil
	}

	devPath, err := filepath.EvalSymlinks(s.devPath(m.Device))
	if err != nil {
		return Properties{}, fmt.Errorf("failed to resolve device %s: %w", m.Device, err)
	}
	name := filepath.Base(devPath)

	classPath, err := filepath.EvalSymlinks(filepath.Join(s.sysRoot, "class", "block", name))
	if err != nil {
		return Properties{}, fmt.Errorf("no sysfs entry for %s: %w", name, err)
	}

	// Partitions live under their parent disk's directory.
	diskPath := classPath
	if _, err := os.Stat(filepath.Join(classPath, "partition")); err == nil {
		diskPath = filepath.Dir(classPath)
	}

	removable := readSysfsString(filepath.Join(diskPath, "removable")) == "1"
	hotplug := false
	for _, bus := range hotplugBuses {
		if strings.Contains(diskPath, bus) {
			hotplug = true
			break
		}
	}

	props.Removable = ptr(removable)
	props.Ejectable = ptr(removable || hotplug)
	props.Internal = ptr(!removable && !hotplug)

	labels := readLabels(filepath.Join(s.devRoot, "disk", "by-label"))
	if label, ok := labels[devPath]; ok {
		props.LocalizedName = ptr(label)
	}

	return props, nil
}

// devPath maps an absolute /dev path onto devRoot.
func (s *sysfsProperties) devPath(device string) string {
	return filepath.Join(s.devRoot, strings.TrimPrefix(device, "/dev/"))
}

func readSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
