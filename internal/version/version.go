// Package version reports the build of the wspolicy binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Swappable for testing
var readBuildInfo = debug.ReadBuildInfo

// Info describes the running build. Fields are empty when unknown.
type Info struct {
	Version   string
	Revision  string
	Modified  bool
	GoVersion string
}

// Get reads the build info embedded by the Go toolchain.
func Get() Info {
	bi, ok := readBuildInfo()
	if !ok {
		return Info{Version: "dev"}
	}
	info := Info{Version: bi.Main.Version, GoVersion: bi.GoVersion}
	if info.Version == "" || info.Version == "(devel)" {
		info.Version = "dev"
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// BuildVersion returns the module version, or "dev" if unavailable.
func BuildVersion() string {
	return Get().Version
}

// String renders "v1.2.3 (rev 0123abcd, go1.24.0)" with the unknown parts
// left out.
func (i Info) String() string {
	s := i.Version
	rev := i.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if i.Modified && rev != "" {
		rev += "+dirty"
	}
	switch {
	case rev != "" && i.GoVersion != "":
		s += fmt.Sprintf(" (rev %s, %s)", rev, i.GoVersion)
	case rev != "":
		s += fmt.Sprintf(" (rev %s)", rev)
	case i.GoVersion != "":
		s += fmt.Sprintf(" (%s)", i.GoVersion)
	}
	return s
}
