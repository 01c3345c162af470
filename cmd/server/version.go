package main

import (
	"runtime"

	"github.com/inferloop/kano/internal/server"
	"github.com/inferloop/kano/pkg/constants"
)

// Set via -ldflags at build time.
var (
	Version   = constants.AppVersion
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
	Platform  = runtime.GOOS + "/" + runtime.GOARCH
)

func GetBuildInfo() server.BuildInfo {
	return server.BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
		Platform:  Platform,
	}
}
