// Package version holds the build fingerprint of the rp6502 tools.
// The variables are overridden at build time via -ldflags, e.g.
//
//	-X rp6502/internal/version.Version=1.0.0 -X rp6502/internal/version.GitCommit=$(git rev-parse HEAD)
package version

import (
	"strings"

	"github.com/fatih/color"
	"github.com/retroenv/retrogolib/buildinfo"
)

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the tools.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// GitMessage is an optional git commit message.
	GitMessage = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Pretty colours the major, minor and patch numbers of Version.
func Pretty() string {
	v := strings.TrimSpace(Version)
	if v == "" {
		return "dev"
	}
	core, suffix := v, ""
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		core, suffix = v[:i], v[i:]
	}
	parts := strings.SplitN(core, ".", 3)
	if len(parts) != 3 {
		return v
	}
	return versionMajorColor.Sprint(parts[0]) + "." +
		versionMinorColor.Sprint(parts[1]) + "." +
		versionPatchColor.Sprint(parts[2]) + suffix
}

// Banner is the one-line fingerprint printed by "rp6502 --version" and the
// header of "rp6502 version": version, commit and date as recorded.
func Banner() string {
	return buildinfo.Version(Version, GitCommit, BuildDate)
}
