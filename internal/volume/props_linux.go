package volume

func newPlatformProperties() propertySource {
	return &sysfsProperties{sysRoot: "/sys", devRoot: "/dev"}
}
