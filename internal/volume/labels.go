package volume

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// readLabels maps resolved device paths to their filesystem label using the
// symlinks udev maintains in dir (normally /dev/disk/by-label).
func readLabels(dir string) map[string]string {
	result := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return result
	}

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		target, err := filepath.EvalSymlinks(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}

		result[target] = decodeLabel(entry.Name())
	}

	return result
}

// decodeLabel undoes udev's \xHH escaping (e.g. "My\x20Disk").
func decodeLabel(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
