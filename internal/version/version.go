// Package version reports build information for the healthdash binary.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Name is the program name used in banners and the User-Agent header
const Name = "healthdash"

// Set via -ldflags "-X healthdash/internal/version.Version=..."
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Info describes the running build
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	Revision  string `json:"revision,omitempty"`
	Committed string `json:"committed,omitempty"`
	Dirty     bool   `json:"dirty"`
}

// Get collects the ldflags values and the VCS stamp the Go toolchain embeds
func Get() Info {
	info := Info{
		Name:      Name,
		Version:   Version,
		BuildTime: BuildTime,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.time":
			info.Committed = s.Value
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// ShortRevision is the first 8 characters of the commit, with "+dirty" for
// modified trees
func (i Info) ShortRevision() string {
	rev := i.Revision
	if len(rev) > 8 {
		rev = rev[:8]
	}
	if rev != "" && i.Dirty {
		rev += "+dirty"
	}
	return rev
}

func (i Info) String() string {
	parts := []string{i.Version}
	if rev := i.ShortRevision(); rev != "" {
		parts = append(parts, "commit "+rev)
	}
	if i.BuildTime != "unknown" {
		parts = append(parts, "built "+i.BuildTime)
	}
	if i.GoVersion != "" {
		parts = append(parts, i.GoVersion)
	}
	return strings.Join(parts, ", ")
}

// UserAgent is sent on outbound HTTP requests
func (i Info) UserAgent() string {
	return fmt.Sprintf("%s/%s", i.Name, i.Version)
}

// Check returns a warning for builds that cannot be traced to a commit, or ""
func (i Info) Check() string {
	switch {
	case i.Dirty:
		return "binary was built from a modified source tree"
	case i.Revision == "" && i.Version == "dev":
		return "development build without version control information"
	}
	return ""
}
