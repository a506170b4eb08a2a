package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// A Collector exports the metrics of an M to Prometheus. Each counter named
// "x" is exported as a counter "<namespace>_x_total", and each max tracker as
// a gauge "<namespace>_x_max". Since the set of names in an M can grow, the
// collector is unchecked: it does not describe its metrics in advance.
type Collector struct {
	m      *M
	ns     string
	labels prometheus.Labels
}

// NewCollector returns a Collector for m, whose metric names are prefixed by
// namespace if it is not empty. The labels, if any, are attached to every
// exported metric.
func NewCollector(m *M, namespace string, labels prometheus.Labels) *Collector {
	return &Collector{m: m, ns: namespace, labels: labels}
}

// Describe implements part of the prometheus.Collector interface.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.m.Each(func(kind Kind, name string, value int64) {
		vt, suffix, help := prometheus.CounterValue, "_total", "Total "+name+"."
		if kind == MaxValue {
			vt, suffix, help = prometheus.GaugeValue, "_max", "Maximum "+name+"."
		}
		fq := prometheus.BuildFQName(c.ns, "", metricName(name)+suffix)
		desc := prometheus.NewDesc(fq, help, nil, c.labels)
		ch <- prometheus.MustNewConstMetric(desc, vt, float64(value))
	})
}

// metricName converts name to a valid Prometheus metric name component.
func metricName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
