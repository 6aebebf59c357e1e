package volume

import "github.com/sigreer/devolume/internal/command"

func newPlatformProperties() propertySource {
	return &diskutilProperties{exec: command.Real{}}
}
