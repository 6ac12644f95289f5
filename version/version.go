package version

import "runtime"

// will be replaced with the release version when using goreleaser
var version = "development"

// Version returns the application version
func Version() string {
	return version
}

// String is the one-line banner printed by the version command.
func String() string {
	return version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
