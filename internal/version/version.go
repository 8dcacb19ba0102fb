// Package version holds the build's version information.
package version

import (
	"runtime"
	"runtime/debug"
)

// Overridden at build time:
// go build -ldflags "-X ducklint/internal/version.Version=0.3.0 -X ducklint/internal/version.Commit=abc123"
var (
	Version   = "0.1.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Details is the version information printed by `ducklint version`.
type Details struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the version details. A commit not set through ldflags is taken
// from the VCS stamp of the build when there is one.
func Get() Details {
	d := Details{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if d.Commit == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					d.Commit = s.Value
				}
			}
		}
	}
	return d
}
