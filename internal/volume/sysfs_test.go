package volume

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sysfsTree builds a minimal /sys and /dev layout under a temp dir.
type sysfsTree struct {
	t   *testing.T
	sys string
	dev string
}

func newSysfsTree(t *testing.T) *sysfsTree {
	t.Helper()
	root := t.TempDir()
	tree := &sysfsTree{t: t, sys: filepath.Join(root, "sys"), dev: filepath.Join(root, "dev")}
	require.NoError(t, os.MkdirAll(filepath.Join(tree.sys, "class", "block"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(tree.dev, "disk", "by-label"), 0o755))
	return tree
}

// addPartition creates <busPath>/block/<disk>/<part> and the matching
// class/block symlink and /dev node.
func (tr *sysfsTree) addPartition(busPath, disk, part, removable string) {
	tr.t.Helper()
	diskDir := filepath.Join(tr.sys, "devices", busPath, "block", disk)
	partDir := filepath.Join(diskDir, part)
	require.NoError(tr.t, os.MkdirAll(partDir, 0o755))
	require.NoError(tr.t, os.WriteFile(filepath.Join(partDir, "partition"), []byte("1\n"), 0o644))
	require.NoError(tr.t, os.WriteFile(filepath.Join(diskDir, "removable"), []byte(removable+"\n"), 0o644))
	require.NoError(tr.t, os.Symlink(partDir, filepath.Join(tr.sys, "class", "block", part)))
	require.NoError(tr.t, os.WriteFile(filepath.Join(tr.dev, part), nil, 0o644))
}

func (tr *sysfsTree) addLabel(label, part string) {
	tr.t.Helper()
	require.NoError(tr.t, os.Symlink(filepath.Join(tr.dev, part), filepath.Join(tr.dev, "disk", "by-label", label)))
}

func (tr *sysfsTree) source() *sysfsProperties {
	return &sysfsProperties{sysRoot: tr.sys, devRoot: tr.dev}
}

func TestSysfsPropertiesUSBPartition(t *testing.T) {
	t.Parallel()

	tree := newSysfsTree(t)
	tree.addPartition("pci0000:00/0000:00:14.0/usb2/2-1/2-1:1.0/host6/target6:0:0/6:0:0:0", "sdb", "sdb1", "0")
	tree.addLabel(`My\x20Disk`, "sdb1")

	props, err := tree.source().Properties(context.Background(), Mount{Path: "/media/alice/My Disk", Device: "/dev/sdb1"})
	require.NoError(t, err)

	assert.False(t, *props.Removable)
	assert.True(t, *props.Ejectable)
	assert.False(t, *props.Internal)
	assert.False(t, *props.RootFS)
	require.NotNil(t, props.LocalizedName)
	assert.Equal(t, "My Disk", *props.LocalizedName)
	assert.True(t, Filter("/media/alice/My Disk", props, []string{"/media/"}))
}

func TestSysfsPropertiesInternalSATA(t *testing.T) {
	t.Parallel()

	tree := newSysfsTree(t)
	tree.addPartition("pci0000:00/0000:00:17.0/ata1/host0/target0:0:0/0:0:0:0", "sda", "sda2", "0")

	props, err := tree.source().Properties(context.Background(), Mount{Path: "/mnt/data", Device: "/dev/sda2"})
	require.NoError(t, err)

	assert.False(t, *props.Removable)
	assert.False(t, *props.Ejectable)
	assert.True(t, *props.Internal)
	assert.Nil(t, props.LocalizedName)
	assert.False(t, Filter("/mnt/data", props, []string{"/mnt/"}))
}

func TestSysfsPropertiesRemovableCardReader(t *testing.T) {
	t.Parallel()

	tree := newSysfsTree(t)
	tree.addPartition("pci0000:00/0000:00:1d.0/ata3/host2/target2:0:0/2:0:0:0", "sdc", "sdc1", "1")

	props, err := tree.source().Properties(context.Background(), Mount{Path: "/media/card", Device: "/dev/sdc1"})
	require.NoError(t, err)

	assert.True(t, *props.Removable)
	assert.True(t, *props.Ejectable)
	assert.False(t, *props.Internal)
}

func TestSysfsPropertiesNonBlockDevice(t *testing.T) {
	t.Parallel()

	tree := newSysfsTree(t)

	props, err := tree.source().Properties(context.Background(), Mount{Path: "/mnt/nfs", Device: "server:/export"})
	require.NoError(t, err)

	assert.Nil(t, props.Removable)
	assert.Nil(t, props.Ejectable)
	assert.Nil(t, props.Internal)
	assert.False(t, *props.RootFS)
}

func TestSysfsPropertiesMissingDevice(t *testing.T) {
	t.Parallel()

	tree := newSysfsTree(t)

	_, err := tree.source().Properties(context.Background(), Mount{Path: "/media/gone", Device: "/dev/sdz1"})
	require.Error(t, err)
}

func TestDecodeLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "My Disk", decodeLabel(`My\x20Disk`))
	assert.Equal(t, "a/b", decodeLabel(`a\x2fb`))
	assert.Equal(t, "plain", decodeLabel("plain"))
	assert.Equal(t, `trailing\x2`, decodeLabel(`trailing\x2`))
	assert.Equal(t, `bad\xzz`, decodeLabel(`bad\xzz`))
}
