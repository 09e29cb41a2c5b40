package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/seqgate/internal/dispatch"
	"github.com/roach88/seqgate/internal/harness"
	"github.com/roach88/seqgate/internal/ir"
	"github.com/roach88/seqgate/internal/metrics"
	"github.com/roach88/seqgate/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database   string
	MetricsOut string
	MaxPending int
	Async      bool
}

// RunReport is the output of the run command.
type RunReport struct {
	Scenario string                    `json:"scenario"`
	Pass     bool                      `json:"pass"`
	Pushes   map[string][]uint64       `json:"pushes"`
	Sources  []dispatch.SourceSnapshot `json:"sources"`
	Errors   []string                  `json:"errors,omitempty"`
	Database string                    `json:"database"`
	// FirstStamp and LastStamp bound the stamps this run wrote. Stamps
	// continue after the highest one already in the journal.
	FirstStamp int64 `json:"first_stamp"`
	LastStamp  int64 `json:"last_stamp"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario through the dispatcher",
		Long: `Run one scenario file through a dispatcher journaled to SQLite.

Every call and push is written to the journal, and every push to the
ledger table, so the database can be inspected with "trace" and verified
with "replay" afterwards. Use a new database file per run: the ledger
refuses slots that an earlier run already pushed.

Example:
  seqgate run --db ./run.db ./scenarios/out_of_order.yaml
  seqgate run --db ./run.db --metrics-out ./seqgate.prom ./scenarios/burst.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $SEQGATE_DB)")
	cmd.Flags().StringVar(&opts.MetricsOut, "metrics-out", "", "write Prometheus metrics to this file")
	cmd.Flags().IntVar(&opts.MaxPending, "max-pending", -1, "per-source buffer limit, 0 for unbounded (default $SEQGATE_MAX_PENDING)")
	cmd.Flags().BoolVar(&opts.Async, "async", false, "deliver on background goroutines (default $SEQGATE_ASYNC)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := opts.newLogger(cmd.ErrOrStderr())
	out := newFormatter(opts.RootOptions, cmd)

	cfg := opts.Config
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}
	if cmd.Flags().Changed("max-pending") {
		cfg.MaxPending = opts.MaxPending
	}
	if cmd.Flags().Changed("async") {
		cfg.Async = opts.Async
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stamp, err := st.MaxStamp(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	clock := dispatch.NewLogicalClockAt(stamp)

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	logger.Info("running scenario", "name", scenario.Name, "steps", len(scenario.Steps))
	result, err := harness.Run(scenario,
		harness.WithStore(st),
		harness.WithLogger(logger),
		harness.WithObserver(collector),
		harness.WithIDGenerator(ir.UUIDv7Generator{}),
		harness.WithClock(clock),
		harness.WithDispatchOptions(cfg.DispatchOptions()...),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	if opts.MetricsOut != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsOut, reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
		out.VerboseLog("metrics written to %s", opts.MetricsOut)
	}

	report := RunReport{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Pushes:   result.Pushes,
		Sources:  result.Sources,
		Errors:   result.Errors,
		Database: cfg.DBPath,
	}
	if last := clock.Current(); last > stamp {
		report.FirstStamp, report.LastStamp = stamp+1, last
		out.VerboseLog("stamps %d..%d written", report.FirstStamp, report.LastStamp)
	}

	if opts.Format == "json" {
		var cliErr *CLIError
		if !result.Pass {
			cliErr = &CLIError{Code: "E_SCENARIO_FAILED", Message: "scenario failed", Details: result.Errors}
		}
		if err := out.JSON(report, cliErr); err != nil {
			return err
		}
	} else {
		writeRunText(cmd, report)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func writeRunText(cmd *cobra.Command, report RunReport) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scenario: %s\n", report.Scenario)
	for _, snap := range report.Sources {
		fmt.Fprintf(w, "  %s: pushed [%s] next=%d pending=%v\n",
			snap.SourceID, joinSequences(report.Pushes[snap.SourceID]), snap.NextExpected, snap.Pending)
	}
	if report.Pass {
		fmt.Fprintln(w, "✓ passed")
		return
	}
	fmt.Fprintln(w, "✗ failed")
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func joinSequences(seqs []uint64) string {
	parts := make([]string, len(seqs))
	for i, s := range seqs {
		parts[i] = fmt.Sprint(s)
	}
	return strings.Join(parts, " ")
}
