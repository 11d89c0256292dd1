package version

import (
	"runtime"
	"strings"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return "tasmi " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// Short is the bare version used in telemetry resources.
func Short() string {
	return strings.TrimPrefix(strings.TrimSpace(Version), "v")
}
