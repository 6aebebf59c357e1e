package handles

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProc struct {
	name     string
	nameErr  error
	cwd      string
	files    []process.OpenFilesStat
	filesErr error
}

func (f fakeProc) NameWithContext(context.Context) (string, error) { return f.name, f.nameErr }

func (f fakeProc) CwdWithContext(context.Context) (string, error) { return f.cwd, nil }

func (f fakeProc) OpenFilesWithContext(context.Context) ([]process.OpenFilesStat, error) {
	return f.files, f.filesErr
}

func procSourceWith(entries ...procEntry) *ProcSource {
	return &ProcSource{list: func(context.Context) ([]procEntry, error) { return entries, nil }}
}

func TestProcSourceQuery(t *testing.T) {
	t.Parallel()

	src := procSourceWith(
		procEntry{pid: 100, proc: fakeProc{name: "bash", cwd: "/media/usb/projects"}},
		procEntry{pid: 200, proc: fakeProc{name: "vlc", cwd: "/home/alice", files: []process.OpenFilesStat{
			{Path: "/home/alice/.config/vlc", Fd: 3},
			{Path: "/media/usb/movie.mkv", Fd: 7},
			{Path: "/media/usb/movie.srt", Fd: 8},
		}}},
		procEntry{pid: 300, proc: fakeProc{name: "Web Content", files: []process.OpenFilesStat{{Path: "/media/usb", Fd: 4}}}},
		procEntry{pid: 400, proc: fakeProc{name: "other", files: []process.OpenFilesStat{{Path: "/media/usb2/x", Fd: 4}}}},
		procEntry{pid: 500, proc: fakeProc{nameErr: errors.New("gone")}},
		procEntry{pid: 600, proc: fakeProc{name: "secret", filesErr: errors.New("permission denied")}},
	)

	out, err := src.Query(context.Background(), "/media/usb/")
	require.NoError(t, err)

	assert.Equal(t, []ProcessInfo{
		{Name: "bash", PID: 100, Selected: true},
		{Name: "vlc", PID: 200, Selected: true},
		{Name: `Web\x20Content`, PID: 300, Selected: true},
	}, Parse(out))
}

func TestProcSourceListError(t *testing.T) {
	t.Parallel()

	src := &ProcSource{list: func(context.Context) ([]procEntry, error) { return nil, errors.New("no /proc") }}
	_, err := src.Query(context.Background(), "/media/usb")
	require.Error(t, err)
}

func TestProcSourceCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := procSourceWith(procEntry{pid: 1, proc: fakeProc{name: "init"}}).Query(ctx, "/media/usb")
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsUnder(t *testing.T) {
	t.Parallel()

	assert.True(t, isUnder("/media/usb", "/media/usb"))
	assert.True(t, isUnder("/media/usb/a/b", "/media/usb"))
	assert.False(t, isUnder("/media/usb2", "/media/usb"))
	assert.True(t, isUnder("/anything", "/"))
}
