package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

// metricsReporter accumulates what a tally root scope reports so the run
// command can print it once the simulation ends.
type metricsReporter struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
}

var _ tally.StatsReporter = (*metricsReporter)(nil)

func newMetricsReporter() *metricsReporter {
	return &metricsReporter{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
	}
}

// newMetricsScope builds the root scope handed to the datacenter. Closing the
// returned closer reports every metric to the reporter one final time.
func newMetricsScope(prefix string) (tally.Scope, io.Closer, *metricsReporter) {
	reporter := newMetricsReporter()
	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:    prefix,
		Reporter:  reporter,
		Separator: tally.DefaultSeparator,
	}, 0)
	return scope, closer, reporter
}

func metricKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + tags[k]
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}

// ReportCounter receives the delta since the previous report.
func (r *metricsReporter) ReportCounter(name string, tags map[string]string, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metricKey(name, tags)] += value
}

func (r *metricsReporter) ReportGauge(name string, tags map[string]string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[metricKey(name, tags)] = value
}

func (r *metricsReporter) ReportTimer(name string, tags map[string]string, interval time.Duration) {
	logrus.Debugf("metric %s = %v", metricKey(name, tags), interval)
}

func (r *metricsReporter) ReportHistogramValueSamples(name string, tags map[string]string,
	_ tally.Buckets, lower, upper float64, samples int64) {
	logrus.Debugf("metric %s [%v, %v) += %d", metricKey(name, tags), lower, upper, samples)
}

func (r *metricsReporter) ReportHistogramDurationSamples(name string, tags map[string]string,
	_ tally.Buckets, lower, upper time.Duration, samples int64) {
	logrus.Debugf("metric %s [%v, %v) += %d", metricKey(name, tags), lower, upper, samples)
}

func (r *metricsReporter) Capabilities() tally.Capabilities { return r }

func (r *metricsReporter) Reporting() bool { return true }

func (r *metricsReporter) Tagging() bool { return true }

func (r *metricsReporter) Flush() {}

// Counter returns the accumulated value for a key built like metricKey.
func (r *metricsReporter) Counter(key string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[key]
}

// Print writes every counter and gauge, sorted by key.
func (r *metricsReporter) Print(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.counters) == 0 && len(r.gauges) == 0 {
		return
	}
	fmt.Fprintf(w, "=== Metrics (diagnostic) ===\n")
	keys := make([]string, 0, len(r.counters))
	for k := range r.counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-60s %d\n", k, r.counters[k])
	}
	keys = keys[:0]
	for k := range r.gauges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-60s %g\n", k, r.gauges[k])
	}
}
