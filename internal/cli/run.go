package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/veneer/internal/clock"
	"github.com/roach88/veneer/internal/compiler"
	"github.com/roach88/veneer/internal/component"
	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/harness"
	"github.com/roach88/veneer/internal/host"
	"github.com/roach88/veneer/internal/loop"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	StateFile string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <manifest-dir> <component>",
		Short: "Drive a live component from stdin",
		Long: `Connect a component on a real clock and apply one step per input line.
Each line is a scenario step in YAML flow or JSON form:

  {set: {count: 3}}
  {dispatch: {selector: button, event: click}}
  {digest: true}
  {disconnect: true}

Every DOM patch is printed as a JSON line as soon as the digest that
made it runs. At end of input the component is digested once more and
its HTML printed as a final JSON line.

Example:
  echo '{dispatch: {selector: button, event: click}}' | veneer run ./ui Counter`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.StateFile, "state", "", "YAML file with state overrides")

	return cmd
}

// lineWriter serializes JSON lines written from the loop and the reader.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *lineWriter) write(v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.enc.Encode(v)
}

func runLive(opts *RunOptions, dir, name string, cmd *cobra.Command) error {
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

	lp := loop.New(loop.WithLogger(logger))
	go func() { _ = lp.Run(ctx) }()
	defer func() {
		lp.Close()
		<-lp.Done()
	}()

	out := &lineWriter{enc: json.NewEncoder(cmd.OutOrStdout())}
	var seq int64
	observer := compiler.ObserverFunc(func(p compiler.Patch) {
		seq++
		out.write(harness.PatchEvent{
			Seq:       seq,
			Op:        string(p.Op),
			Directive: p.Directive,
			Expr:      p.Expr,
			Path:      dom.Path(p.Node),
			Value:     p.Value,
		})
	})

	var (
		comp  *component.Component
		state *host.State
	)
	var setupErr error
	if err := lp.Do(ctx, func() {
		comp, state, setupErr = def.Instantiate(overrides,
			component.WithLogger(logger),
			component.WithClock(lp.Clock(clock.Real())),
			component.WithObserver(observer),
			component.WithErrorHandler(func(err error) {
				out.write(map[string]string{"error": err.Error()})
			}),
		)
		if setupErr == nil {
			state.SetOnPanic(func(recovered any) {
				logger.Error("state subscriber panicked", "panic", recovered)
			})
			setupErr = comp.Connect()
		}
	}); err != nil {
		return WrapExitError(ExitFailure, "run interrupted", err)
	}
	if setupErr != nil {
		return WrapExitError(ExitFailure, "connecting component", setupErr)
	}
	logger.Info("component running", "component", def.Name, "tag", def.Tag)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		step, err := parseStep(line)
		if err != nil {
			out.write(map[string]string{"error": err.Error()})
			continue
		}
		var stepErr error
		if err := lp.Do(ctx, func() { stepErr = applyStep(comp, state, step) }); err != nil {
			return WrapExitError(ExitFailure, "run interrupted", err)
		}
		if stepErr != nil {
			out.write(map[string]string{"error": stepErr.Error()})
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return WrapExitError(ExitCommandError, "reading input", err)
	}

	var html string
	if err := lp.Do(ctx, func() {
		if comp.Connected() {
			if err := comp.Digest(true); err != nil {
				out.write(map[string]string{"error": err.Error()})
			}
		}
		html = comp.HTML()
		comp.Dispose()
	}); err != nil {
		return WrapExitError(ExitFailure, "run interrupted", err)
	}
	out.write(map[string]string{"html": html})
	return nil
}

// parseStep decodes one input line as a scenario step.
func parseStep(line string) (harness.Step, error) {
	var step harness.Step
	dec := yaml.NewDecoder(bytes.NewReader([]byte(line)))
	dec.KnownFields(true)
	if err := dec.Decode(&step); err != nil {
		return step, fmt.Errorf("invalid step %q: %w", line, err)
	}
	return step, nil
}

// applyStep runs one step against a live component. Advancing time is
// meaningless on the real clock and is rejected.
func applyStep(comp *component.Component, state *host.State, step harness.Step) error {
	switch {
	case step.Set != nil:
		state.Update(step.Set)
	case step.Dispatch != nil:
		return step.Dispatch.Apply(comp)
	case step.Digest:
		return comp.Digest(true)
	case step.Connect:
		return comp.Connect()
	case step.Disconnect:
		comp.Disconnect()
	case step.Advance != "":
		return fmt.Errorf("advance is only available in scenarios")
	default:
		return fmt.Errorf("step does nothing")
	}
	return nil
}
