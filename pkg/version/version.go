// Package version reports convorag build information.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is set via ldflags:
// -X github.com/Aman-CERP/convorag/pkg/version.Version=$(VERSION)
var Version = "dev"

var (
	// Commit is the git commit hash. When not set via ldflags it is read
	// from the binary's VCS stamp.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"
)

func init() {
	if Commit != "unknown" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	Commit, Date = vcsStamp(info.Settings, Commit, Date)
}

// vcsStamp picks the revision and commit time out of build settings.
func vcsStamp(settings []debug.BuildSetting, commit, date string) (string, string) {
	modified := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
			if len(commit) > 7 {
				commit = commit[:7]
			}
		case "vcs.time":
			date = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if modified && commit != "unknown" {
		commit += "-dirty"
	}
	return commit, date
}

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a one-line version string with build info.
func String() string {
	return fmt.Sprintf("convorag %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, runtime.Version())
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
