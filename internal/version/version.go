package version

// Version is the current version of devolume.
// Use semantic versioning: MAJOR.MINOR.PATCH
const Version = "0.3.0"

// String returns the version line printed by the version command.
func String() string {
	return "devolume " + Version
}
