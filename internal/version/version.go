// Package version reports the build's version, set at link time with
// -ldflags "-X worshiplive/internal/version.Version=v1.2.3".
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
)

var Version = "dev"

type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	info := Info{Version: strings.TrimPrefix(Version, "v"), GoVersion: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				info.Revision = s.Value
			}
		}
	}
	return info
}
