// Package misc provides build identity helpers shared by the program.
package misc

import (
	"runtime/debug"
	"sync"
)

const appName = "d2e"

// set by the linker on release builds, otherwise derived from build info
var (
	version = ""
	gitHash = ""
)

var readBuildInfo = sync.OnceFunc(func() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "" && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && gitHash == "" {
			gitHash = s.Value
		}
	}
})

// GetAppName returns program name to be used in logs, temporary file names and
// similar places.
func GetAppName() string {
	return appName
}

// GetVersion returns program version.
func GetVersion() string {
	readBuildInfo()
	if version == "" {
		return "(devel)"
	}
	return version
}

// GetGitHash returns VCS revision the program was built from.
func GetGitHash() string {
	readBuildInfo()
	if gitHash == "" {
		return "unknown"
	}
	return gitHash
}
