package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/veneer/internal/store"
	"github.com/roach88/veneer/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	RenderID  string // show one render's patches
	Component string // filter the render list
	Op        string // filter patches to one op
}

// RenderSummary is one row of the render list.
type RenderSummary struct {
	ID        string `json:"id"`
	Component string `json:"component"`
	Tag       string `json:"tag"`
	StartedAt string `json:"started_at"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// TraceEvent is one decoded patch in a render's timeline.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Op        string `json:"op"`
	Directive string `json:"directive"`
	Expr      string `json:"expr"`
	Path      string `json:"path"`
	Value     any    `json:"value"`
	ValueHash string `json:"value_hash"`
}

// TraceResult holds one render with its patch timeline.
type TraceResult struct {
	Render   RenderSummary  `json:"render"`
	HTML     string         `json:"html"`
	Timeline []TraceEvent   `json:"timeline"`
	Stats    map[string]int `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded renders",
		Long: `List the renders recorded in a trace database, or show one render's
patch timeline with decoded values.

Examples:
  veneer trace --db ./veneer.db
  veneer trace --db ./veneer.db --component Counter
  veneer trace --db ./veneer.db --render 0192f... --op content
  veneer trace --db ./veneer.db --render 0192f... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RenderID, "render", "", "render id to show")
	cmd.Flags().StringVar(&opts.Component, "component", "", "only list renders of this component")
	cmd.Flags().StringVar(&opts.Op, "op", "", "only show patches with this op")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RenderID == "" {
		renders, err := st.ReadRenders(ctx, opts.Component)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read renders", err)
		}
		list := make([]RenderSummary, len(renders))
		for i, r := range renders {
			list[i] = summarizeRender(r)
		}
		if formatter.JSON() {
			return formatter.Success(list)
		}
		return outputRenderList(formatter.Writer, list)
	}

	r, err := st.ReadRender(ctx, opts.RenderID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("render not found: %s", opts.RenderID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read render", err)
	}
	patches, err := st.ReadPatches(ctx, r.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read patches", err)
	}

	result := TraceResult{
		Render:   summarizeRender(r),
		HTML:     r.HTML,
		Timeline: []TraceEvent{},
		Stats:    map[string]int{},
	}
	for _, p := range patches {
		result.Stats[p.Op]++
		if opts.Op != "" && p.Op != opts.Op {
			continue
		}
		value, err := trace.DecodeValue(p.Value)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("decoding patch %d", p.Seq), err)
		}
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:       p.Seq,
			Op:        p.Op,
			Directive: p.Directive,
			Expr:      p.Expr,
			Path:      p.Path,
			Value:     value,
			ValueHash: p.ValueHash,
		})
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

func summarizeRender(r store.Render) RenderSummary {
	return RenderSummary{
		ID:        r.ID,
		Component: r.Component,
		Tag:       r.Tag,
		StartedAt: r.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Status:    string(r.Status),
		Error:     r.Error,
	}
}

func outputRenderList(w io.Writer, list []RenderSummary) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No renders recorded.")
		return nil
	}
	for _, r := range list {
		fmt.Fprintf(w, "%s  %-6s  %s <%s>  %s\n", truncateID(r.ID), r.Status, r.Component, r.Tag, r.StartedAt)
		if r.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", r.Error)
		}
	}
	return nil
}

// outputTraceText outputs a render's timeline as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Render: %s\n", result.Render.ID)
	fmt.Fprintf(w, "Component: %s <%s>\n", result.Render.Component, result.Render.Tag)
	fmt.Fprintf(w, "Status: %s\n", result.Render.Status)
	if result.Render.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", result.Render.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no patches)")
	}
	for _, e := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %-7s %s %s=%q -> %v\n", e.Seq, e.Op, e.Path, e.Directive, e.Expr, e.Value)
		if verbose {
			fmt.Fprintf(w, "       hash: %s\n", e.ValueHash)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	ops := make([]string, 0, len(result.Stats))
	for op := range result.Stats {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		fmt.Fprintf(w, "  %-8s %d\n", op+":", result.Stats[op])
	}

	if verbose && result.HTML != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== HTML ===")
		fmt.Fprintln(w, result.HTML)
	}
	return nil
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
