package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsReporter_AccumulatesCounterDeltas(t *testing.T) {
	r := newMetricsReporter()
	tags := map[string]string{"host": "h1", "dc": "d"}

	r.ReportCounter("netsim.router.packets_remote", tags, 2)
	r.ReportCounter("netsim.router.packets_remote", tags, 3)
	r.ReportCounter("netsim.router.packets_remote", map[string]string{"host": "h2"}, 1)

	assert.Equal(t, int64(5), r.Counter("netsim.router.packets_remote{dc=d,host=h1}"))
	assert.Equal(t, int64(1), r.Counter("netsim.router.packets_remote{host=h2}"))
	assert.Equal(t, int64(0), r.Counter("netsim.router.packets_dropped"))
}

func TestMetricsReporter_PrintIsSorted(t *testing.T) {
	r := newMetricsReporter()
	r.ReportCounter("b", nil, 1)
	r.ReportCounter("a", nil, 2)
	r.ReportGauge("g", map[string]string{"host": "h1"}, 4)

	var buf bytes.Buffer
	r.Print(&buf)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "=== Metrics (diagnostic) ===", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "a "))
	assert.True(t, strings.HasPrefix(lines[2], "b "))
	assert.True(t, strings.HasPrefix(lines[3], "g{host=h1} "))
	assert.True(t, strings.HasSuffix(lines[3], " 4"))
}

func TestMetricsReporter_PrintsNothingWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	newMetricsReporter().Print(&buf)
	assert.Empty(t, buf.String())
}

func TestNewMetricsScope(t *testing.T) {
	scope, closer, reporter := newMetricsScope("netsim")
	scope.Counter("c").Inc(1)
	assert.NoError(t, closer.Close())
	assert.NotNil(t, reporter)
}
