package version

// Version is the agistme release.
const Version = "0.4.0"

// BuildVersion returns the version string for display.
func BuildVersion() string {
	return "agistme version " + Version
}

// UserAgent is sent with every request to the agistment API.
func UserAgent() string {
	return "agistme/" + Version
}
