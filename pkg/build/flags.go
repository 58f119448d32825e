// SPDX-License-Identifier: MIT
//
// Package build provides functionality to manage and retrieve build information
// for a Go application. It allows embedding metadata such as the application
// name, build timestamp, Git commit hash, and semantic version into the binary
// at compile time using linker flags. This information can be useful for debugging,
// logging, and displaying version information to users.
package build

import "fmt"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Description is the one-line summary shown in command help.
const Description = "Real-time audio spectrum bars for the terminal and the network"

// Package-level variables for build information. These are populated by -ldflags
// during compilation, for example:
//
//	go build -ldflags "-X audiobars/pkg/build.buildName=audiobars -X audiobars/pkg/build.buildVersion=0.1.0"
//
// Development defaults are used until Initialize succeeds.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = devFlags()
)

// devFlags is the build information used when the binary was built without
// ldflags, e.g. by go run.
func devFlags() *ldFlags {
	return &ldFlags{
		Name:        "audiobars",
		Description: Description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize validates and copies build information from ldflags variables
// into the buildFlags struct. Returns an error if any required build flag is
// missing, in which case the development defaults stay in place.
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

	buildFlags.Description = Description
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

// String formats the build information for version output.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
