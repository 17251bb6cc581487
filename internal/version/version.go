// Package version holds the build version of docker-tidy. Version and Commit
// are set at link time with -ldflags "-X".
package version

import (
	"runtime"
	"runtime/debug"
)

var (
	// Name is the name of the binary.
	Name = "docker-tidy"

	// Version is the main package version.
	Version = "source"

	// Commit is the git sha.
	Commit = ""

	// OSArch is the operating system and architecture combination.
	OSArch = runtime.GOOS + "/" + runtime.GOARCH

	// HumanVersion is the compiled version.
	HumanVersion = humanVersion(Version, Commit)
)

func humanVersion(version, commit string) string {
	if version == "" {
		version = "source"
	}

	if commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					commit = setting.Value
					break
				}
			}
		}
	}
	if commit == "" {
		commit = "unknown"
	}

	return Name + " " + version + " (" + commit + ", " + OSArch + ")"
}
