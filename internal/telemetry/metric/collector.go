package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/geminid/internal/infra/buildinfo"
)

// BuildCollector exports a constant geminid_build_info gauge labelled with
// the build metadata.
type BuildCollector struct {
	desc *prometheus.Desc
	info buildinfo.Info
}

// NewBuildCollector creates a build-info collector.
func NewBuildCollector() *BuildCollector {
	return &BuildCollector{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "build_info"),
			"Build information of the running binary.",
			[]string{"version", "commit", "go_version"},
			nil,
		),
		info: buildinfo.Get(),
	}
}

// Describe implements prometheus.Collector.
func (c *BuildCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *BuildCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, 1,
		c.info.Version, c.info.Commit, c.info.GoVersion)
}
