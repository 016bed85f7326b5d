package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/atexit"
	"go.uber.org/multierr"

	"github.com/netsim-lab/netsim/sim"
	"github.com/netsim-lab/netsim/sim/datacenter"
	"github.com/netsim-lab/netsim/sim/trace"
)

const twoHostScenario = `
switches:
  - {id: edge1, downlink_bandwidth_mbps: 1000}
hosts:
  - {id: h1, pes: 2, mips: 1000, switch: edge1}
  - {id: h2, pes: 2, mips: 1000, switch: edge1}
vms:
  - {id: vm1, pes: 1, mips: 1000, host: h1}
  - {id: vm2, pes: 1, mips: 1000, host: h2}
tasks:
  - id: A
    vm: vm1
    stages:
      - {kind: send, size: 1000, packets: 2, peer_task: B}
  - id: B
    vm: vm2
    stages:
      - {kind: receive, packets: 2, peer_task: A}
`

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	// GIVEN a host entry with a misspelled field
	data := []byte(`
hosts:
  - {id: h1, pes: 2, mipz: 1000, switch: edge1}
`)

	// WHEN parsed
	_, err := ParseScenario(data)

	// THEN strict decoding reports the field
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mipz")
}

func TestParseScenario_PeerVMDefaultsToPeerTaskVM(t *testing.T) {
	sc, err := ParseScenario([]byte(twoHostScenario))
	require.NoError(t, err)

	taskVM := map[string]string{"A": "vm1", "B": "vm2"}
	st := sc.Tasks[0].Stages[0].toStage(taskVM)

	assert.Equal(t, sim.StageSend, st.Kind)
	assert.Equal(t, sim.Endpoint{Task: "B", VM: "vm2"}, st.Peer)
	assert.Equal(t, int64(1000), st.Size)
	assert.Equal(t, 2, st.Packets)
}

func TestScenarioValidate_ReportsEveryProblem(t *testing.T) {
	// GIVEN a scenario with several independent mistakes
	sc := &Scenario{
		Switches: []SwitchSpec{{ID: "edge1", DownlinkBandwidthMbps: 0}},
		Hosts: []HostSpec{
			{ID: "h1", PEs: 2, MIPS: 1000, Switch: "edge1"},
			{ID: "h2", PEs: 0, MIPS: 1000, Switch: "nowhere"},
		},
		VMs: []VMSpec{
			{ID: "vm1", PEs: 1, MIPS: 1000, Host: "h9"},
			{ID: "vm2", PEs: 1, MIPS: 1000, Placement: "best"},
		},
		Tasks: []TaskSpec{
			{ID: "A", VM: "vm1", Stages: []StageSpec{{Kind: "compute"}}},
			{ID: "B", VM: "vm2", Stages: []StageSpec{{Kind: "receive", Packets: 1, PeerTask: "Z"}}},
		},
		Migrations: []MigrationSpec{{VM: "vm1", To: "h1", At: -1}},
	}

	// WHEN validated
	err := sc.Validate()

	// THEN every mistake is listed in one error
	require.Error(t, err)
	errs := multierr.Errors(err)
	assert.Len(t, errs, 8)
	assert.True(t, errors.Is(err, datacenter.ErrBandwidthConfiguration), "zero downlink must be a bandwidth configuration error")
	msg := err.Error()
	for _, want := range []string{`unknown switch "nowhere"`, `unknown host "h9"`, `"best"`, `"compute"`, `unknown peer task "Z"`, "tick must be >= 0"} {
		assert.Contains(t, msg, want)
	}
}

func TestScenarioValidate_HostOverrideFixesBandwidth(t *testing.T) {
	// GIVEN a dead downlink but a positive host override
	sc := &Scenario{
		Switches: []SwitchSpec{{ID: "edge1"}},
		Hosts:    []HostSpec{{ID: "h1", PEs: 1, MIPS: 1000, Switch: "edge1", BandwidthMbps: 100}},
	}

	assert.NoError(t, sc.Validate())

	sc.Hosts[0].BandwidthMbps = -1
	assert.True(t, errors.Is(sc.Validate(), datacenter.ErrBandwidthConfiguration))
}

func TestRunScenario_WorkflowFile(t *testing.T) {
	// GIVEN the bundled two-producer workflow
	sc, err := LoadScenario(filepath.Join("..", "scenarios", "workflow.yaml"))
	require.NoError(t, err)

	// WHEN it runs with full tracing
	res, err := runScenario(sc, runOptions{TraceLevel: "full"})
	require.NoError(t, err)

	// THEN C finishes after both packets and its own execute stage
	sum := res.Summary
	assert.Equal(t, sim.StatusCompleted, sum.Status)
	assert.Equal(t, 3, sum.Completed)
	for _, task := range sum.Tasks {
		if task.ID == "C" {
			assert.InDelta(t, 2_500_008, task.Finish, 2)
		}
	}
	assert.Equal(t, int64(2000), sum.TotalBytes)

	ts := trace.Summarize(res.Trace)
	assert.Equal(t, 2, ts.Remote)
	assert.Equal(t, 2, ts.Received)
	assert.Equal(t, 0, ts.Dropped)
	assert.Equal(t, int64(8), ts.MaxDelay)
	assert.Equal(t, 3, ts.StagesByKind["execute"])
	assert.Equal(t, 2, ts.StagesByKind["receive"])
}

func TestRunScenario_SharedUplinkSplitsBandwidth(t *testing.T) {
	// GIVEN A sends two 1000-byte packets to a VM on another host
	sc, err := ParseScenario([]byte(twoHostScenario))
	require.NoError(t, err)

	// WHEN it runs
	res, err := runScenario(sc, runOptions{TraceLevel: "packets"})
	require.NoError(t, err)

	// THEN both packets share the 1000 Mbps uplink and arrive after 16 ticks
	require.Equal(t, 2, res.Summary.Completed)
	for _, p := range res.Trace.Packets {
		if p.Route == trace.RouteRemote {
			assert.Equal(t, int64(16), p.Delay)
			assert.InDelta(t, 500, p.ShareMbps, 1e-9)
		}
	}
	assert.Equal(t, int64(16), res.Summary.Clock)
}

func TestRunScenario_MigrationFile(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("..", "scenarios", "migration.yaml"))
	require.NoError(t, err)

	res, err := runScenario(sc, runOptions{TraceLevel: "packets", Seed: 7})
	require.NoError(t, err)

	assert.Equal(t, sim.StatusCompleted, res.Summary.Status)
	assert.Equal(t, 3, res.Summary.Completed)
	ts := trace.Summarize(res.Trace)
	assert.Equal(t, 0, ts.Local, "vmB left h1 before A sent")
	assert.Equal(t, 4, ts.Remote)
	assert.Equal(t, int64(4000), res.Summary.HostBytes["h1"])
}

func TestRunScenario_RejectsBadTraceLevel(t *testing.T) {
	sc, err := ParseScenario([]byte(twoHostScenario))
	require.NoError(t, err)

	_, err = runScenario(sc, runOptions{TraceLevel: "verbose"})
	assert.Error(t, err)
}

func TestRunScenario_WritesTraceDatabase(t *testing.T) {
	sc, err := ParseScenario([]byte(twoHostScenario))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "trace.sqlite3")

	_, err = runScenario(sc, runOptions{TraceDB: path})
	require.NoError(t, err)

	// a second run must not overwrite the database
	_, err = runScenario(sc, runOptions{TraceDB: path})
	assert.Error(t, err)
}

func TestRunScenario_AutoTraceDatabaseGetsUniqueName(t *testing.T) {
	// GIVEN --trace-db given without a value
	sc, err := ParseScenario([]byte(twoHostScenario))
	require.NoError(t, err)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	flag := runCmd.Flags().Lookup("trace-db")
	require.NotNil(t, flag)
	require.Equal(t, traceDBAuto, flag.NoOptDefVal)

	// WHEN two runs use it
	for i := 0; i < 2; i++ {
		_, err = runScenario(sc, runOptions{TraceDB: flag.NoOptDefVal})
		require.NoError(t, err)
	}

	// THEN each run wrote its own database
	files, err := filepath.Glob("netsim_trace_*.sqlite3")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestInstallExitHandler_RoutesFatalThroughAtexit(t *testing.T) {
	logger := logrus.StandardLogger()
	saved := logger.ExitFunc
	t.Cleanup(func() { logger.ExitFunc = saved })

	installExitHandler()

	require.NotNil(t, logger.ExitFunc)
	assert.Equal(t, reflect.ValueOf(atexit.Exit).Pointer(), reflect.ValueOf(logger.ExitFunc).Pointer())
}

func TestPrintResult(t *testing.T) {
	sc, err := ParseScenario([]byte(twoHostScenario))
	require.NoError(t, err)
	res, err := runScenario(sc, runOptions{TraceLevel: "full"})
	require.NoError(t, err)

	var buf bytes.Buffer
	printResult(&buf, res, trace.TraceLevelFull)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "=== Simulation Summary ==="))
	assert.Contains(t, out, "Tasks completed : 2 / 2")
	assert.Contains(t, out, "=== Trace Summary ===")
	assert.Contains(t, out, "Packets remote  : 2 (2000 bytes")
	assert.Contains(t, out, "Packets dropped : 0 (diagnostic")
}
