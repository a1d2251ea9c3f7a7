package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/graphite/internal/blueprint"
	"github.com/roach88/graphite/internal/canon"
	"github.com/roach88/graphite/internal/engine"
	"github.com/roach88/graphite/internal/graph"
	"github.com/roach88/graphite/internal/store"
)

// DefaultSettle bounds the wait for in-flight effects after each trigger.
const DefaultSettle = 10 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database   string
	Triggers   []string // "node=value"
	MaxReentry int      // -1 keeps the blueprint's setting
	Settle     time.Duration

	// TriggerIDs overrides the trigger id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	TriggerIDs engine.TriggerIDGenerator
}

// RunResult is the outcome of a run.
type RunResult struct {
	Blueprint string         `json:"blueprint"`
	Hash      string         `json:"hash"`
	Passes    []PassSummary  `json:"passes"`
	Final     map[string]any `json:"final"`
	Stored    int            `json:"stored,omitempty"`
}

// PassSummary describes one pass of a run.
type PassSummary struct {
	TriggerID string         `json:"trigger_id"`
	Seq       int64          `json:"seq"`
	Trigger   string         `json:"trigger"`
	Payload   any            `json:"payload"`
	Executed  []string       `json:"executed"`
	Errors    []ErrorSummary `json:"errors,omitempty"`
	Aborted   bool           `json:"aborted,omitempty"`
	Cause     string         `json:"cause,omitempty"`
}

// ErrorSummary is one runtime error of a pass.
type ErrorSummary struct {
	Code    string `json:"code"`
	Node    string `json:"node,omitempty"`
	Message string `json:"message"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <blueprint>",
		Short: "Run a blueprint's triggers",
		Long: `Build the blueprint's graph and propagate its triggers.

Each trigger runs as one pass; effect outcomes re-enter as further passes.
The command waits for in-flight effects before reporting. With --db every
pass is written to a SQLite trace store for the trace command.

Exit codes:
  0 - All passes completed (step failures are reported, not fatal)
  1 - Invalid blueprint, or a pass was aborted
  2 - Command error (blueprint not found, bad flags, database error)

Examples:
  graphite run ./blueprints/feedback.yaml
  graphite run ./blueprints/feedback.yaml --trigger a=1 --trigger a=2
  graphite run ./blueprints/doubler.cue --db ./graphite.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlueprint(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace store (optional)")
	cmd.Flags().StringArrayVar(&opts.Triggers, "trigger", nil, "trigger as node=value (repeatable; defaults to the blueprint's)")
	cmd.Flags().IntVar(&opts.MaxReentry, "max-reentry", -1, "override the blueprint's max_reentry")
	cmd.Flags().DurationVar(&opts.Settle, "settle", DefaultSettle, "how long to wait for effects after each trigger")

	return cmd
}

// ParseTrigger parses a "node=value" trigger flag.
func ParseTrigger(s string) (blueprint.TriggerSpec, error) {
	node, value, ok := strings.Cut(s, "=")
	node = strings.TrimSpace(node)
	if !ok || node == "" {
		return blueprint.TriggerSpec{}, fmt.Errorf("invalid trigger %q: want node=value", s)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return blueprint.TriggerSpec{}, fmt.Errorf("invalid trigger %q: value must be an integer", s)
	}
	return blueprint.TriggerSpec{Node: node, Value: n}, nil
}

func runBlueprint(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()

	bp, err := LoadBlueprint(path)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load blueprint", err)
	}
	if opts.MaxReentry >= 0 {
		n := opts.MaxReentry
		bp.Settings.MaxReentry = &n
	}
	if errs := blueprint.Validate(bp); len(errs) > 0 {
		_ = formatter.Error(errs[0].Code, errs[0].Error(), errs)
		return NewExitError(ExitFailure, fmt.Sprintf("invalid blueprint %q: %d error(s)", bp.Name, len(errs)))
	}

	triggers := bp.Triggers
	if len(opts.Triggers) > 0 {
		triggers = make([]blueprint.TriggerSpec, 0, len(opts.Triggers))
		for _, s := range opts.Triggers {
			tr, err := ParseTrigger(s)
			if err != nil {
				_ = formatter.Error(ErrCodeBadTrigger, err.Error(), nil)
				return WrapExitError(ExitCommandError, "bad --trigger flag", err)
			}
			triggers = append(triggers, tr)
		}
	}
	if len(triggers) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("blueprint %q declares no triggers (use --trigger node=value)", bp.Name))
	}

	hash, err := bp.Hash()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash blueprint", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := &passCollector{}
	tracers := []engine.Tracer{collector}
	clock := engine.NewClock()

	var (
		st          *store.Store
		storeTracer *store.Tracer
	)
	if opts.Database != "" {
		logger.Debug("opening trace store", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		// Continue the stored sequence so passes from several runs interleave
		// in execution order.
		maxSeq, err := st.MaxSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read trace store", err)
		}
		clock = engine.NewClockAt(maxSeq)
	}

	ids := opts.TriggerIDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}

	var compiled *blueprint.Compiled
	names := func(id graph.NodeID) string {
		if compiled == nil {
			return id.String()
		}
		return compiled.Name(id)
	}
	if st != nil {
		storeTracer = st.Tracer(
			store.WithMeta(store.Meta{Blueprint: bp.Name, BlueprintHash: hash}),
			store.WithNodeNames(names),
			store.WithTracerLogger(logger),
		)
		tracers = append(tracers, storeTracer)
	}

	k, err := blueprint.NewKernel(bp,
		engine.WithLogger(logger),
		engine.WithTriggerIDs(ids),
		engine.WithClock(clock),
		engine.WithTracer(engine.Tracers(tracers...)),
		engine.WithContext(ctx),
	)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid settings", err)
	}
	defer k.Close()

	compiled, err = blueprint.Compile(bp, k)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to compile blueprint", err)
	}

	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	for i, tr := range triggers {
		p, err := compiled.Fire(ctx, k, tr)
		if p == nil && err != nil {
			_ = formatter.Error(ErrCodeBadTrigger, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("trigger %d", i), err)
		}

		settleCtx, cancel := context.WithTimeout(ctx, settle)
		err = k.Settled(settleCtx)
		cancel()
		if err != nil {
			return WrapExitError(ExitFailure, "effects did not settle", err)
		}
	}

	result := RunResult{
		Blueprint: bp.Name,
		Hash:      hash,
		Final:     make(map[string]any),
	}
	for _, p := range collector.all() {
		result.Passes = append(result.Passes, summarizePass(p, compiled))
	}
	for _, name := range compiled.Names() {
		if v, ok := k.Value(compiled.MustID(name)); ok {
			result.Final[name] = v
		}
	}
	if storeTracer != nil {
		if err := storeTracer.Err(); err != nil {
			return WrapExitError(ExitCommandError, "failed to write trace store", err)
		}
		result.Stored = storeTracer.Written()
	}

	if formatter.Format == "json" {
		if err := formatter.JSON(CLIResponse{Status: "ok", Data: result}); err != nil {
			return err
		}
	} else {
		printRun(formatter, result)
	}

	if n := result.aborted(); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d pass(es) aborted", n))
	}
	return nil
}

func (r RunResult) aborted() int {
	n := 0
	for _, p := range r.Passes {
		if p.Aborted {
			n++
		}
	}
	return n
}

func summarizePass(p *engine.Pass, compiled *blueprint.Compiled) PassSummary {
	s := PassSummary{
		TriggerID: p.TriggerID,
		Seq:       p.Seq,
		Trigger:   compiled.Name(p.Trigger.Node),
		Payload:   p.Trigger.Payload,
		Executed:  make([]string, 0, len(p.Executions)),
		Aborted:   p.Aborted,
	}
	for _, ex := range p.Executions {
		s.Executed = append(s.Executed, compiled.Name(ex.Node))
	}
	for _, re := range p.Errors {
		s.Errors = append(s.Errors, ErrorSummary{
			Code:    string(re.Code),
			Node:    re.NodeName,
			Message: re.Message,
		})
	}
	if p.Cause != nil {
		s.Cause = p.Cause.Error()
	}
	return s
}

func printRun(f *OutputFormatter, r RunResult) {
	w := f.Writer
	fmt.Fprintf(w, "blueprint %s\n", r.Blueprint)
	f.VerboseLog("hash %s", r.Hash)

	for _, p := range r.Passes {
		fmt.Fprintf(w, "pass %s: %s=%s, %d execution(s)\n", p.TriggerID, p.Trigger, canon.String(p.Payload), len(p.Executed))
		fmt.Fprintf(w, "  %s\n", strings.Join(p.Executed, " "))
		for _, e := range p.Errors {
			fmt.Fprintf(w, "  error %s at %s: %s\n", e.Code, e.Node, e.Message)
		}
		if p.Aborted {
			fmt.Fprintf(w, "  aborted: %s\n", p.Cause)
		}
	}

	if len(r.Final) > 0 {
		fmt.Fprintln(w, "final values:")
		for _, name := range sortedKeys(r.Final) {
			fmt.Fprintf(w, "  %s = %s\n", name, canon.String(r.Final[name]))
		}
	}
	if r.Stored > 0 {
		fmt.Fprintf(w, "stored %d pass(es)\n", r.Stored)
	}
}

// passCollector is a tracer keeping every finished pass.
type passCollector struct {
	mu     sync.Mutex
	passes []*engine.Pass
}

func (c *passCollector) PassStarted(*engine.Pass)                         {}
func (c *passCollector) NodeExecuted(*engine.Pass, engine.Execution)      {}
func (c *passCollector) ErrorReported(*engine.Pass, *engine.RuntimeError) {}

func (c *passCollector) PassFinished(p *engine.Pass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passes = append(c.passes, p)
}

func (c *passCollector) all() []*engine.Pass {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*engine.Pass(nil), c.passes...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
