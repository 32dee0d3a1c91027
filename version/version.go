package version

import (
	"runtime/debug"
	"strings"
)

// ModulePath is the import path of this module.
const ModulePath = "github.com/kbukum/mongofixtures"

// Name is the short library name used in client metadata.
const Name = "mongofixtures"

var (
	// These variables are set at build time using -ldflags.
	Version   = ""
	GitCommit = ""
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info describes the library build.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version"`
	IsDirty   bool   `json:"is_dirty"`
}

// Get returns the version of this module. An -ldflags value wins; otherwise
// the version is taken from the build info of the binary, where this module
// is either the main module or a dependency.
func Get() Info {
	info := Info{Version: Version, GitCommit: GitCommit}

	bi, ok := readBuildInfo()
	if !ok {
		if info.Version == "" {
			info.Version = "(devel)"
		}
		return info
	}
	info.GoVersion = bi.GoVersion

	if info.Version == "" {
		info.Version = moduleVersion(bi)
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
				if len(info.GitCommit) > 7 {
					info.GitCommit = info.GitCommit[:7]
				}
			}
		case "vcs.modified":
			info.IsDirty = s.Value == "true"
		}
	}
	return info
}

func moduleVersion(bi *debug.BuildInfo) string {
	if bi.Main.Path == ModulePath && bi.Main.Version != "" {
		return bi.Main.Version
	}
	for _, dep := range bi.Deps {
		if dep.Path != ModulePath {
			continue
		}
		if dep.Replace != nil && dep.Replace.Version != "" {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return "(devel)"
}

// Short returns the version, with the commit appended for development builds.
func Short() string {
	info := Get()
	v := info.Version
	if info.GitCommit != "" && !strings.HasPrefix(v, "v") {
		v += "-" + info.GitCommit
	}
	if info.IsDirty {
		v += "-dirty"
	}
	return v
}

// AppName returns the client name reported to the database server.
func AppName() string {
	return Name + "/" + Short()
}
