// Package buildinfo reports the version of the running binary.
package buildinfo

import "runtime/debug"

// Set at build time via -ldflags "-X github.com/fulmenhq/guidekit/pkg/buildinfo.BinaryVersion=...".
var (
	BinaryVersion = "dev"
	Commit        = ""
	BuildDate     = ""
)

// Info is the version block printed by `guidekit version`.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Module    string `json:"module,omitempty" yaml:"module,omitempty"`
	Commit    string `json:"commit,omitempty" yaml:"commit,omitempty"`
	BuildDate string `json:"buildDate,omitempty" yaml:"buildDate,omitempty"`
	GoVersion string `json:"goVersion,omitempty" yaml:"goVersion,omitempty"`
}

// ModuleVersion returns the module version embedded by the Go toolchain (when available).
func ModuleVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return ""
}

// Current collects the ldflags values and, where they are unset, what the
// toolchain recorded in the binary.
func Current() Info {
	out := Info{Version: BinaryVersion, Commit: Commit, BuildDate: BuildDate}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	out.Module = info.Main.Version
	out.GoVersion = info.GoVersion
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if out.Commit == "" {
				out.Commit = s.Value
			}
		case "vcs.time":
			if out.BuildDate == "" {
				out.BuildDate = s.Value
			}
		}
	}
	return out
}
