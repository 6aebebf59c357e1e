//go:build !linux && !darwin

package volume

import "context"

// unknownProperties reports nothing beyond whether the mount is /, so only
// mounts the filter can accept on defaults alone are listed.
type unknownProperties struct{}

func (unknownProperties) Properties(_ context.Context, m Mount) (Properties, error) {
	return Properties{RootFS: ptr(m.Path == "/")}, nil
}

func newPlatformProperties() propertySource {
	return unknownProperties{}
}
