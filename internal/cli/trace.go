package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/graphite/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	TriggerID string // show one pass in full
	Node      string // show every execution of one node
	Blueprint string // restrict the pass list to one blueprint
	Limit     int    // most recent passes only
}

// NodeTimeline is every stored execution of one node.
type NodeTimeline struct {
	Node       string             `json:"node"`
	Executions []NodeTimelineItem `json:"executions"`
}

// NodeTimelineItem is one execution of NodeTimeline.
type NodeTimelineItem struct {
	TriggerID string `json:"trigger_id"`
	store.ExecutionRecord
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect stored passes",
		Long: `Inspect the passes a run wrote to a trace store.

Without selectors the stored passes are listed in execution order. With
--trigger one pass is shown in full: every execution with its input,
output and re-entry count, followed by the errors it reported. With --node
every stored execution of that node is listed across passes.

Examples:
  graphite trace --db ./graphite.db
  graphite trace --db ./graphite.db --blueprint feedback --limit 10
  graphite trace --db ./graphite.db --trigger 0190f5c2-...
  graphite trace --db ./graphite.db --node a --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.TriggerID, "trigger", "", "trigger id of the pass to show")
	cmd.Flags().StringVar(&opts.Node, "node", "", "node name to follow across passes")
	cmd.Flags().StringVar(&opts.Blueprint, "blueprint", "", "list only passes of this blueprint")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "list only the most recent passes (0 = all)")
	cmd.MarkFlagsMutuallyExclusive("trigger", "node")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	// store.Open would create a missing file.
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	switch {
	case opts.TriggerID != "":
		rec, err := st.ReadPass(ctx, opts.TriggerID)
		if errors.Is(err, store.ErrPassNotFound) {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "no such pass", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read pass", err)
		}
		if formatter.Format == "json" {
			return formatter.JSON(CLIResponse{Status: "ok", Data: rec})
		}
		printPass(formatter, rec)
		return nil

	case opts.Node != "":
		execs, err := st.NodeExecutions(ctx, opts.Node)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read executions", err)
		}
		timeline := NodeTimeline{Node: opts.Node, Executions: make([]NodeTimelineItem, 0, len(execs))}
		for _, ex := range execs {
			timeline.Executions = append(timeline.Executions, NodeTimelineItem{TriggerID: ex.TriggerID, ExecutionRecord: ex})
		}
		if formatter.Format == "json" {
			return formatter.JSON(CLIResponse{Status: "ok", Data: timeline})
		}
		printNodeTimeline(formatter, timeline)
		return nil

	default:
		passes, err := st.ListPasses(ctx, store.ListOptions{Blueprint: opts.Blueprint, Limit: opts.Limit})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list passes", err)
		}
		if formatter.Format == "json" {
			return formatter.JSON(CLIResponse{Status: "ok", Data: passes})
		}
		printPassList(formatter, passes)
		return nil
	}
}

func printPassList(f *OutputFormatter, passes []store.PassRecord) {
	w := f.Writer
	if len(passes) == 0 {
		fmt.Fprintln(w, "No passes stored.")
		return
	}
	for _, p := range passes {
		status := "ok"
		if p.Aborted {
			status = "aborted"
		}
		fmt.Fprintf(w, "%6d  %s  %s  %s=%s  %s\n", p.Seq, p.TriggerID, p.Blueprint, p.TriggerName, p.Payload, status)
	}
}

func printPass(f *OutputFormatter, p store.PassRecord) {
	w := f.Writer
	fmt.Fprintf(w, "pass %s (seq %d)\n", p.TriggerID, p.Seq)
	if p.Blueprint != "" {
		fmt.Fprintf(w, "blueprint %s\n", p.Blueprint)
		f.VerboseLog("hash %s", p.BlueprintHash)
	}
	fmt.Fprintf(w, "trigger %s = %s\n", p.TriggerName, p.Payload)
	fmt.Fprintln(w)

	for _, ex := range p.Executions {
		fmt.Fprintf(w, "%6d  %-12s in=%s", ex.Seq, ex.NodeName, ex.Input)
		switch {
		case ex.Failed:
			fmt.Fprint(w, " failed")
		case ex.Produced:
			fmt.Fprintf(w, " out=%s", ex.Output)
		default:
			fmt.Fprint(w, " (no output)")
		}
		if ex.Reentry > 0 {
			fmt.Fprintf(w, " reentry=%d", ex.Reentry)
		}
		fmt.Fprintln(w)
	}

	for _, e := range p.Errors {
		fmt.Fprintf(w, "error %s at %s: %s\n", e.Code, e.NodeName, e.Message)
	}
	if p.Aborted {
		fmt.Fprintf(w, "aborted: %s\n", p.Cause)
	}
}

func printNodeTimeline(f *OutputFormatter, t NodeTimeline) {
	w := f.Writer
	if len(t.Executions) == 0 {
		fmt.Fprintf(w, "No executions stored for node: %s\n", t.Node)
		return
	}
	for _, ex := range t.Executions {
		out := ex.Output
		if !ex.Produced {
			out = "-"
		}
		fmt.Fprintf(w, "%6d  %s  in=%s out=%s\n", ex.Seq, ex.TriggerID, ex.Input, out)
	}
}
