package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flame/internal/config"
	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	FlowToken string
	Op        string // optional - filter to one op
}

// TimelineEvent is one journal record in a flow's timeline.
type TimelineEvent struct {
	Seq        int64          `json:"seq"`
	Type       string         `json:"type"` // "intent" or "outcome"
	ID         string         `json:"id"`
	Op         ir.Op          `json:"op"`
	Payload    map[string]any `json:"payload,omitempty"`
	Strategy   string         `json:"strategy,omitempty"`
	Status     string         `json:"status,omitempty"`
	HTTPStatus int            `json:"http_status,omitempty"`
	Detail     string         `json:"detail,omitempty"`
}

// ProvenanceEdge links an intent to the follow-up its handler dispatched.
type ProvenanceEdge struct {
	FromIntent string `json:"from_intent"`
	FromOp     ir.Op  `json:"from_op"`
	ToIntent   string `json:"to_intent"`
	ToOp       ir.Op  `json:"to_op"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	FlowToken  string           `json:"flow_token"`
	Timeline   []TimelineEvent  `json:"timeline"`
	Provenance []ProvenanceEdge `json:"provenance"`
	Stats      TraceStats       `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int  `json:"total_events"`
	Intents     int  `json:"intents"`
	Outcomes    int  `json:"outcomes"`
	Failed      int  `json:"failed"`
	Superseded  int  `json:"superseded"`
	IsComplete  bool `json:"is_complete"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect the intent journal",
		Long: `Read the intent journal written by earlier commands (--journal or
journal.path).

Without --flow, lists every flow with its root op. With --flow, shows the
flow's timeline of intents and outcomes, and the provenance edges from each
intent to the follow-ups its handler dispatched.

Examples:
  flame trace --journal ./flame.db
  flame trace --journal ./flame.db --flow 0192f4c4-...
  flame trace --journal ./flame.db --flow 0192f4c4-... --op GET_SPECIES --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "flow token to trace")
	cmd.Flags().StringVar(&opts.Op, "op", "", "filter the timeline to one op")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(config.Options{File: opts.ConfigFile, Flags: cmd.Flags()})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cfg.Journal.Path == "" {
		return NewExitError(ExitCommandError, "no journal configured: pass --journal or set journal.path")
	}

	st, err := store.Open(cfg.Journal.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	if opts.FlowToken == "" {
		flows, err := st.ListFlows(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list flows", err)
		}
		if out.JSON() {
			if flows == nil {
				flows = []store.FlowSummary{}
			}
			return out.Success(flows)
		}
		outputFlowsText(cmd.OutOrStdout(), flows)
		return nil
	}

	intents, outcomes, err := st.ReadFlow(ctx, opts.FlowToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read flow", err)
	}

	result := buildTraceResult(opts.FlowToken, intents, outcomes, ir.Op(opts.Op))
	if out.JSON() {
		return out.Success(result)
	}
	if len(intents) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No events found for flow: %s\n", opts.FlowToken)
		return nil
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// buildTraceResult merges a flow's records into one timeline ordered by
// seq. With an op filter only that op's intents and their outcomes are
// kept; provenance and stats always cover the whole flow.
func buildTraceResult(flowToken string, intents []ir.IntentRecord, outcomes []ir.OutcomeRecord, opFilter ir.Op) TraceResult {
	byID := make(map[string]ir.IntentRecord, len(intents))
	for _, in := range intents {
		byID[in.ID] = in
	}

	result := TraceResult{
		FlowToken:  flowToken,
		Timeline:   []TimelineEvent{},
		Provenance: []ProvenanceEdge{},
		Stats:      TraceStats{Intents: len(intents), Outcomes: len(outcomes)},
	}

	for _, in := range intents {
		if in.ParentID != "" {
			result.Provenance = append(result.Provenance, ProvenanceEdge{
				FromIntent: in.ParentID,
				FromOp:     byID[in.ParentID].Op,
				ToIntent:   in.ID,
				ToOp:       in.Op,
			})
		}
		if opFilter != "" && in.Op != opFilter {
			continue
		}
		result.Timeline = append(result.Timeline, TimelineEvent{
			Seq:      in.Seq,
			Type:     "intent",
			ID:       in.ID,
			Op:       in.Op,
			Payload:  in.Payload,
			Strategy: in.Strategy,
		})
	}

	answered := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		answered[o.IntentID] = true
		switch o.Status {
		case ir.OutcomeFailed:
			result.Stats.Failed++
		case ir.OutcomeSuperseded:
			result.Stats.Superseded++
		}
		op := byID[o.IntentID].Op
		if opFilter != "" && op != opFilter {
			continue
		}
		result.Timeline = append(result.Timeline, TimelineEvent{
			Seq:        o.Seq,
			Type:       "outcome",
			ID:         o.IntentID,
			Op:         op,
			Status:     string(o.Status),
			HTTPStatus: o.HTTPStatus,
			Detail:     o.Detail,
		})
	}

	sort.SliceStable(result.Timeline, func(i, j int) bool {
		return result.Timeline[i].Seq < result.Timeline[j].Seq
	})

	result.Stats.TotalEvents = len(result.Timeline)
	result.Stats.IsComplete = len(intents) > 0
	for _, in := range intents {
		if !answered[in.ID] {
			result.Stats.IsComplete = false
			break
		}
	}
	return result
}

func outputFlowsText(w io.Writer, flows []store.FlowSummary) {
	if len(flows) == 0 {
		fmt.Fprintln(w, "No flows recorded.")
		return
	}
	fmt.Fprintf(w, "Flows (%d)\n", len(flows))
	for _, f := range flows {
		fmt.Fprintf(w, "  %s  %-24s %3d intents  seq %d-%d\n",
			f.FlowToken, f.RootOp, f.Intents, f.FirstSeq, f.LastSeq)
	}
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Flow: %s\n", result.FlowToken)
	fmt.Fprintf(w, "Status: %s\n", completeStatus(result.Stats.IsComplete))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Provenance ===")
	if len(result.Provenance) == 0 {
		fmt.Fprintln(w, "  (no follow-ups)")
	}
	for _, e := range result.Provenance {
		fmt.Fprintf(w, "  %s %s -> %s %s\n", e.FromOp, truncateID(e.FromIntent), e.ToOp, truncateID(e.ToIntent))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Intents:      %d\n", result.Stats.Intents)
	fmt.Fprintf(w, "  Outcomes:     %d\n", result.Stats.Outcomes)
	fmt.Fprintf(w, "  Failed:       %d\n", result.Stats.Failed)
	fmt.Fprintf(w, "  Superseded:   %d\n", result.Stats.Superseded)
}

func formatTimelineEvent(w io.Writer, ev TimelineEvent, verbose bool) {
	switch ev.Type {
	case "intent":
		fmt.Fprintf(w, "  [%d] %s (%s)\n", ev.Seq, ev.Op, ev.Strategy)
		if verbose && len(ev.Payload) > 0 {
			fmt.Fprintf(w, "       Payload: %s\n", formatArgs(ev.Payload))
		}
	case "outcome":
		line := fmt.Sprintf("  [%d]   %s -> %s", ev.Seq, ev.Op, ev.Status)
		if ev.HTTPStatus != 0 {
			line += fmt.Sprintf(" (%d)", ev.HTTPStatus)
		}
		if ev.Detail != "" {
			line += ": " + ev.Detail
		}
		fmt.Fprintln(w, line)
	}
	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(ev.ID))
	}
}

// formatArgs formats a payload with sorted keys.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

func completeStatus(isComplete bool) string {
	if isComplete {
		return "Complete"
	}
	return "Incomplete (pending outcomes)"
}
