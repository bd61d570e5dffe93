// Package version reports the build version of lumo.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version can be set at build time:
// go build -ldflags "-X github.com/vsariola/lumo/version.Version=$(git describe --dirty)"
var Version string

// Revision is the short VCS revision the binary was built from, with a
// -dirty suffix for modified trees.
var Revision = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return revision(info.Settings)
}()

func revision(settings []debug.BuildSetting) string {
	var rev string
	modified := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev != "" && modified {
		rev += "-dirty"
	}
	return rev
}

// VersionOrRevision returns Version if set, else Revision, else "devel".
func VersionOrRevision() string {
	switch {
	case Version != "":
		return Version
	case Revision != "":
		return Revision
	}
	return "devel"
}

// String is the line printed by lumo version.
func String() string {
	return fmt.Sprintf("lumo %v (%v %v/%v)", VersionOrRevision(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
