package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/seqgate/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Source   string   // optional - filter to one source
	Kinds    []string // optional - filter to event kinds
}

// TraceResult holds the trace output.
type TraceResult struct {
	Source   string        `json:"source,omitempty"`
	Timeline []store.Event `json:"timeline"`
	Stats    TraceStats    `json:"stats"`
}

// TraceStats holds summary statistics for the timeline.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Scheduled   int `json:"scheduled"`
	Rejected    int `json:"rejected"`
	Pushed      int `json:"pushed"`
	PushFailed  int `json:"push_failed"`
	Confirmed   int `json:"confirmed"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the journal timeline",
		Long: `Print the dispatcher events recorded in a journal database, in the
order they were written.

Examples:
  seqgate trace --db ./run.db
  seqgate trace --db ./run.db --source wallet-7
  seqgate trace --db ./run.db --kind pushed --kind push_failed --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $SEQGATE_DB)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "only show events for this source")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "only show these event kinds")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	path, err := opts.databasePath(opts.Database)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}

	kinds := make([]store.EventKind, 0, len(opts.Kinds))
	for _, k := range opts.Kinds {
		kind := store.EventKind(k)
		switch kind {
		case store.EventScheduled, store.EventRejected, store.EventPushed, store.EventPushFailed, store.EventConfirmed:
			kinds = append(kinds, kind)
		default:
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown event kind %q", k))
		}
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	events, err := st.ReadEvents(ctx, opts.Source, kinds...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{Source: opts.Source, Timeline: events, Stats: traceStats(events)}

	if opts.Format == "json" {
		return newFormatter(opts.RootOptions, cmd).JSON(result, nil)
	}

	w := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return nil
	}
	for _, e := range events {
		fmt.Fprintf(w, "%6d  %-11s %s", e.Seq, e.Kind, e.Item)
		switch e.Kind {
		case store.EventScheduled:
			fmt.Fprintf(w, "  %s", e.Outcome)
		case store.EventRejected:
			fmt.Fprintf(w, "  %s", e.Code)
		case store.EventPushed:
			fmt.Fprintf(w, "  stamp=%d", e.Stamp)
		case store.EventPushFailed:
			fmt.Fprintf(w, "  stamp=%d error=%q", e.Stamp, e.Detail)
		case store.EventConfirmed:
			fmt.Fprintf(w, "  released=%d", e.Released)
		}
		fmt.Fprintln(w)
	}
	s := result.Stats
	fmt.Fprintf(w, "\n%d events: %d scheduled, %d rejected, %d pushed, %d push failures, %d confirmed\n",
		s.TotalEvents, s.Scheduled, s.Rejected, s.Pushed, s.PushFailed, s.Confirmed)
	return nil
}

func traceStats(events []store.Event) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, e := range events {
		switch e.Kind {
		case store.EventScheduled:
			stats.Scheduled++
		case store.EventRejected:
			stats.Rejected++
		case store.EventPushed:
			stats.Pushed++
		case store.EventPushFailed:
			stats.PushFailed++
		case store.EventConfirmed:
			stats.Confirmed++
		}
	}
	return stats
}
