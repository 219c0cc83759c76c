// Package version reports build metadata injected with -ldflags:
//
//	go build -ldflags "-X github.com/smazurov/camrelay/internal/version.Version=v1.2.0 \
//	  -X github.com/smazurov/camrelay/internal/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	BuildID   = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
}

// Get returns version and build information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String is the one-line form printed by --version, e.g.
// "v1.2.0 (abc1234, go1.24.11 linux/arm64)".
func (i Info) String() string {
	if i.GitCommit == "" || i.GitCommit == "unknown" {
		return fmt.Sprintf("%s (%s %s)", i.Version, i.GoVersion, i.Platform)
	}
	return fmt.Sprintf("%s (%s, %s %s)", i.Version, i.GitCommit, i.GoVersion, i.Platform)
}
