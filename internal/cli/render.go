package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	g "maragu.dev/gomponents"
	"maragu.dev/gomponents/components"

	"github.com/roach88/veneer/internal/clock"
	"github.com/roach88/veneer/internal/component"
	"github.com/roach88/veneer/internal/loop"
	"github.com/roach88/veneer/internal/manifest"
	"github.com/roach88/veneer/internal/store"
	"github.com/roach88/veneer/internal/trace"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	StateFile string // YAML file with state overrides
	Page      bool   // wrap the output in an HTML document
	Database  string // record the render's patches here
}

// RenderResult is the JSON payload of the render command.
type RenderResult struct {
	Component string `json:"component"`
	Tag       string `json:"tag"`
	HTML      string `json:"html"`
	RenderID  string `json:"render_id,omitempty"`
	Patches   int    `json:"patches"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <manifest-dir> <component>",
		Short: "Render a component to HTML",
		Long: `Instantiate a component from its manifest, connect it, and print the
host element with its shadow root as declarative shadow DOM.

The component is looked up by name or tag. State from --state overrides
the manifest's state key by key.

Examples:
  veneer render ./ui Counter
  veneer render ./ui x-counter --state counter.yaml
  veneer render ./ui TodoList --page > todo.html
  veneer render ./ui Counter --trace ./veneer.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.StateFile, "state", "", "YAML file with state overrides")
	cmd.Flags().BoolVar(&opts.Page, "page", false, "wrap the component in a standalone HTML page")
	cmd.Flags().StringVar(&opts.Database, "trace", "", "record patches to this SQLite database")

	return cmd
}

func runRender(opts *RenderOptions, dir, name string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	logger := opts.logger()

	def, err := lookupComponent(dir, name)
	if err != nil {
		return err
	}
	overrides, err := readStateFile(opts.StateFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading state file", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DOM work runs on the event loop so timer-driven digests never race
	// the render.
	lp := loop.New(loop.WithLogger(logger))
	go func() { _ = lp.Run(ctx) }()
	defer func() {
		lp.Close()
		<-lp.Done()
	}()

	compOpts := []component.Option{
		component.WithLogger(logger),
		component.WithClock(lp.Clock(clock.Real())),
	}

	var session *trace.Session
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		session, err = trace.NewRecorder(st, trace.WithLogger(logger)).Begin(ctx, def.Name, def.Tag)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to begin trace", err)
		}
		compOpts = append(compOpts, component.WithObserver(session))
	}

	var (
		out       string
		renderErr error
	)
	if err := lp.Do(ctx, func() {
		out, renderErr = renderOnce(def, overrides, compOpts)
	}); err != nil {
		return WrapExitError(ExitFailure, "render interrupted", err)
	}

	result := RenderResult{Component: def.Name, Tag: def.Tag, HTML: out}
	if session != nil {
		result.RenderID = session.ID()
		result.Patches = len(session.Patches())
		if err := session.End(out, renderErr); err != nil {
			return WrapExitError(ExitCommandError, "failed to record trace", err)
		}
		logger.Debug("render recorded", "render_id", result.RenderID, "patches", result.Patches)
	}
	if renderErr != nil {
		_ = formatter.Error(manifest.Code(renderErr), renderErr.Error(), nil)
		return WrapExitError(ExitFailure, "render failed", renderErr)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	if opts.Page {
		return writePage(formatter.Writer, def.Name, out)
	}
	_, err = fmt.Fprintln(formatter.Writer, out)
	return err
}

// renderOnce instantiates, connects and serializes def, then disposes it.
func renderOnce(def *manifest.Component, overrides map[string]any, opts []component.Option) (string, error) {
	comp, _, err := def.Instantiate(overrides, opts...)
	if err != nil {
		return "", err
	}
	defer comp.Dispose()

	if err := comp.Connect(); err != nil {
		return "", err
	}
	return comp.HTML(), nil
}

// writePage wraps markup in an HTML5 document.
func writePage(w io.Writer, title, markup string) error {
	page := components.HTML5(components.HTML5Props{
		Title:    title,
		Language: "en",
		Body:     []g.Node{g.Raw(markup)},
	})
	if err := page.Render(w); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

// lookupComponent loads dir and finds a component by name or tag.
func lookupComponent(dir, name string) (*manifest.Component, error) {
	set, errs := manifest.Load(dir, manifest.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "loading manifests", errors.Join(errs...))
	}
	def, ok := set.Lookup(name)
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("component %q not found (have %v)", name, set.Names()))
	}
	return def, nil
}

// readStateFile decodes a YAML mapping of state overrides. An empty path
// yields no overrides.
func readStateFile(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state map[string]any
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return state, nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute (tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
