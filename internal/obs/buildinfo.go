package obs

import (
	"runtime"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "bureau_build_info",
		Help: "Build of the running bureau-api; always 1.",
	},
	[]string{"version", "commit", "go_version"},
)

// SetBuildInfo publishes the running build. An empty commit is taken from the
// VCS stamp of the binary when there is one.
func SetBuildInfo(version, commit string) {
	if commit == "" {
		commit = vcsRevision()
	}
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return "unknown"
}
