package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/netsim-lab/netsim/sim"
	"github.com/netsim-lab/netsim/sim/datacenter"
	"github.com/netsim-lab/netsim/sim/trace"
)

var (
	scenarioPath      string // Path to the YAML scenario
	logLevel          string // Log verbosity level
	simulationHorizon int64  // Last tick to simulate; 0 runs until the event queue drains
	seed              int64  // Seed for random VM placement
	stallTimeout      int64  // Ticks without stage progress before a task is reported stalled
	traceLevel        string // Trace verbosity: none, packets, full
	traceDB           string // SQLite file receiving every trace record
	metricsPrefix     string // Prefix for router and switch metric names
)

// traceDBAuto is the --trace-db value that picks a fresh file name.
const traceDBAuto = "auto"

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "netsim",
	Short: "Discrete-event simulator for network-aware staged tasks in a datacenter",
}

// runOptions carries the run flags into runScenario.
type runOptions struct {
	Horizon       int64
	Seed          int64
	StallTimeout  int64
	TraceLevel    string
	TraceDB       string
	MetricsPrefix string
}

// runResult is everything a finished run reports.
type runResult struct {
	Summary datacenter.Summary
	Trace   *trace.SimulationTrace
	Metrics *metricsReporter
}

// runCmd executes a scenario and prints the summary
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if scenarioPath == "" {
			logrus.Fatalf("Scenario not provided. Use --scenario <file>.")
		}
		sc, err := LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		logrus.Infof("Starting simulation of %s: %d hosts, %d VMs, %d tasks, horizon=%d ticks",
			scenarioPath, len(sc.Hosts), len(sc.VMs), len(sc.Tasks), simulationHorizon)
		res, err := runScenario(sc, runOptions{
			Horizon:       simulationHorizon,
			Seed:          seed,
			StallTimeout:  stallTimeout,
			TraceLevel:    traceLevel,
			TraceDB:       traceDB,
			MetricsPrefix: metricsPrefix,
		})
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		printResult(os.Stdout, res, trace.TraceLevel(traceLevel))

		if res.Summary.Status == sim.StatusTerminated {
			logrus.Fatalf("Simulation terminated: %v", res.Summary.Err)
		}
		logrus.Info("Simulation complete.")
		atexit.Exit(0)
	},
}

// validateCmd checks a scenario without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a scenario for errors",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		sc, err := LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := sc.Validate(); err != nil {
			logrus.Fatalf("Scenario %s is invalid:\n%v", scenarioPath, err)
		}
		fmt.Printf("Scenario %s is valid: %d switches, %d hosts, %d VMs, %d tasks\n",
			scenarioPath, len(sc.Switches), len(sc.Hosts), len(sc.VMs), len(sc.Tasks))
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// runScenario builds the scenario on a fresh simulator and runs it to the end.
func runScenario(sc *Scenario, opts runOptions) (*runResult, error) {
	if !trace.IsValidTraceLevel(opts.TraceLevel) {
		return nil, fmt.Errorf("invalid trace level %q (valid: none, packets, full)", opts.TraceLevel)
	}
	level := trace.TraceLevel(opts.TraceLevel)
	if level == "" {
		level = trace.TraceLevelNone
	}

	mem := trace.NewSimulationTrace(level)
	recorders := []trace.Recorder{mem}
	var db *trace.SQLiteWriter
	if opts.TraceDB != "" {
		path := opts.TraceDB
		if path == traceDBAuto {
			path = trace.DefaultTracePath()
		}
		w, err := trace.NewSQLiteWriter(path)
		if err != nil {
			return nil, err
		}
		db = w
		recorders = append(recorders, db)
	}

	scope, closer, reporter := newMetricsScope(opts.MetricsPrefix)
	s := sim.NewSimulator(opts.Horizon)
	dc, err := sc.Build(s, datacenter.Config{
		Seed:         opts.Seed,
		StallTimeout: opts.StallTimeout,
		Scope:        scope,
		Recorder:     trace.Multi(recorders...),
	})
	if err != nil {
		_ = closer.Close()
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}

	dc.Start()
	result := s.Run()
	summary := dc.Finalize(result)

	if err := closer.Close(); err != nil {
		logrus.Warnf("closing metrics scope: %v", err)
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logrus.Warnf("trace database %s: %v", db.Path(), err)
		}
	}
	return &runResult{Summary: summary, Trace: mem, Metrics: reporter}, nil
}

func printResult(w io.Writer, res *runResult, level trace.TraceLevel) {
	res.Summary.Print(w)
	if level != trace.TraceLevelNone && level != "" {
		ts := trace.Summarize(res.Trace)
		fmt.Fprintf(w, "=== Trace Summary ===\n")
		fmt.Fprintf(w, "Packets local   : %d\n", ts.Local)
		fmt.Fprintf(w, "Packets remote  : %d (%d bytes, mean delay %.1f ticks, max %d)\n",
			ts.Remote, ts.RemoteBytes, ts.MeanDelay, ts.MaxDelay)
		fmt.Fprintf(w, "Packets received: %d\n", ts.Received)
		fmt.Fprintf(w, "Packets dropped : %d (diagnostic, not part of the totals above)\n", ts.Dropped)
		for _, kind := range []sim.StageKind{sim.StageExecute, sim.StageSend, sim.StageReceive} {
			if n := ts.StagesByKind[string(kind)]; n > 0 {
				fmt.Fprintf(w, "Stages %-9s: %d\n", kind, n)
			}
		}
	}
	res.Metrics.Print(w)
}

// installExitHandler makes logrus.Fatalf run the atexit handlers, so trace
// databases are flushed before the process exits.
func installExitHandler() {
	logrus.StandardLogger().ExitFunc = atexit.Exit
}

// Execute runs the CLI root command
func Execute() {
	installExitHandler()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		atexit.Exit(1)
	}
}

func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&scenarioPath, "scenario", "", "Path to YAML scenario file")
		c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	}
	runCmd.Flags().Int64Var(&simulationHorizon, "horizon", 0, "Last simulated tick (1 tick = 1µs); 0 runs until no events remain")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for random VM placement")
	runCmd.Flags().Int64Var(&stallTimeout, "stall-timeout", 0, "Report tasks without stage progress for this many ticks; 0 disables")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Trace verbosity (none, packets, full)")
	runCmd.Flags().StringVar(&traceDB, "trace-db", "", "Also write trace records to this SQLite file; without a value a unique file name is generated")
	runCmd.Flags().Lookup("trace-db").NoOptDefVal = traceDBAuto
	runCmd.Flags().StringVar(&metricsPrefix, "metrics-prefix", "netsim", "Prefix for metric names")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
