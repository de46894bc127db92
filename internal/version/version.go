package version

import "runtime/debug"

var version = "devel"

// Get returns the build version, preferring the value injected at link time
// and falling back to module build info.
func Get() string {
	if version != "devel" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}
