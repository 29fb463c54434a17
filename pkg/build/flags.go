// SPDX-License-Identifier: MIT
//
// Package build provides functionality to manage and retrieve build information
// for the audiosync binary. The application name, build timestamp, Git commit
// hash and semantic version are embedded at compile time using linker flags:
//
//	go build -ldflags "-X audiosync/pkg/build.buildName=audiosync \
//	    -X audiosync/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds without ldflags run with the defaults below.
package build

import "fmt"

// Description is the one-line summary shown in the CLI help.
const Description = "Stream audio spectrum frames to WLED-compatible receivers over UDP"

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "audiosync",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize validates and copies build information from ldflags variables
// into the buildFlags struct. It returns an error naming the first missing
// flag, in which case the development defaults stay in place.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the build information for --version output.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", f.Version, f.Commit, f.Time)
}
