package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/veneer/internal/clock"
	"github.com/roach88/veneer/internal/compiler"
	"github.com/roach88/veneer/internal/component"
	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/host"
	"github.com/roach88/veneer/internal/ids"
	"github.com/roach88/veneer/internal/manifest"
	"github.com/roach88/veneer/internal/trace"
)

// Option configures a scenario run.
type Option func(*runner)

// WithManifests renders from an already loaded manifest set instead of the
// scenario's manifests directory.
func WithManifests(set *manifest.Set) Option {
	return func(r *runner) {
		r.set = set
	}
}

// WithRecorder records the run's patches into a trace store.
func WithRecorder(rec *trace.Recorder) Option {
	return func(r *runner) {
		r.recorder = rec
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) {
		r.logger = l
	}
}

// runner holds the state of one scenario execution.
type runner struct {
	set      *manifest.Set
	recorder *trace.Recorder
	logger   *slog.Logger

	clock *clock.Manual
	comp  *component.Component
	state *host.State

	mu     sync.Mutex
	result *Result
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Load the manifests and instantiate the component on a manual clock
//  2. Connect it (first paint)
//  3. Execute steps, checking step assertions
//  4. Evaluate the final assertions
//
// A returned error means the scenario could not run at all; rendering and
// assertion failures are reported in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	r := &runner{result: NewResult()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if r.set == nil {
		if scenario.Manifests == "" {
			return nil, fmt.Errorf("scenario %s: no manifests", scenario.Name)
		}
		set, errs := manifest.Load(scenario.Manifests, manifest.LoadModeFailFast)
		if len(errs) > 0 {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, errors.Join(errs...))
		}
		r.set = set
	}
	def, ok := r.set.Lookup(scenario.Component)
	if !ok {
		return nil, fmt.Errorf("scenario %s: component %q not found", scenario.Name, scenario.Component)
	}

	r.clock = clock.NewManual(time.Time{})
	compOpts := []component.Option{
		component.WithClock(r.clock),
		component.WithIDGenerator(ids.NewSequence(def.Tag)),
		component.WithLogger(r.logger.With("scenario", scenario.Name)),
		component.WithObserver(compiler.ObserverFunc(r.onPatch)),
		component.WithErrorHandler(func(err error) {
			r.addError(fmt.Sprintf("digest: %v", err))
		}),
	}

	var session *trace.Session
	if r.recorder != nil {
		s, err := r.recorder.Begin(ctx, def.Name, def.Tag)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		session = s
		r.result.RenderID = s.ID()
		compOpts = append(compOpts, component.WithObserver(session))
	}

	comp, state, err := def.Instantiate(scenario.State, compOpts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	r.comp, r.state = comp, state
	state.SetOnPanic(func(recovered any) {
		r.addError(fmt.Sprintf("state subscriber panicked: %v", recovered))
	})
	defer comp.Dispose()

	if err := comp.Connect(); err != nil {
		r.addError(fmt.Sprintf("connect: %v", err))
	} else {
		r.runSteps(scenario.Steps)
	}

	if r.result.Pass {
		r.check(scenario.Assertions, "assertions")
	}
	r.result.HTML = comp.HTML()
	r.result.State = state.Snapshot()

	if session != nil {
		var renderErr error
		if !r.result.Pass {
			renderErr = errors.New(r.result.Errors[0])
		}
		if err := session.End(r.result.HTML, renderErr); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
	}

	r.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", r.result.Pass,
		"patches", len(r.result.Patches),
	)
	return r.result, nil
}

func (r *runner) onPatch(p compiler.Patch) {
	path := ""
	if p.Node != nil {
		path = dom.Path(p.Node)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Patches = append(r.result.Patches, PatchEvent{
		Seq:       int64(len(r.result.Patches) + 1),
		Op:        string(p.Op),
		Directive: p.Directive,
		Expr:      p.Expr,
		Path:      path,
		Value:     p.Value,
	})
}

func (r *runner) addError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.AddError(msg)
}

// runSteps stops at the first step that fails to run or whose assertions
// fail.
func (r *runner) runSteps(steps []Step) {
	for i, step := range steps {
		if err := r.runStep(step); err != nil {
			r.addError(fmt.Sprintf("steps[%d]: %v", i, err))
			return
		}
		if !r.check(step.Assert, fmt.Sprintf("steps[%d].assert", i)) || !r.result.Pass {
			return
		}
	}
}

func (r *runner) runStep(step Step) error {
	switch {
	case step.Set != nil:
		r.state.Update(step.Set)
	case step.Dispatch != nil:
		return step.Dispatch.Apply(r.comp)
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		r.clock.Advance(d)
	case step.Digest:
		return r.comp.Digest(true)
	case step.Connect:
		return r.comp.Connect()
	case step.Disconnect:
		r.comp.Disconnect()
	}
	return nil
}

// Apply updates the target's value and checked attributes, then dispatches
// the event at it.
func (d *Dispatch) Apply(comp *component.Component) error {
	node, err := comp.Query(d.Selector)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("dispatch %s: no element matches %q", d.Event, d.Selector)
	}
	if d.Value != nil {
		dom.SetAttr(node, "value", *d.Value)
	}
	if d.Checked != nil {
		if *d.Checked {
			dom.SetAttr(node, "checked", "")
		} else {
			dom.RemoveAttr(node, "checked")
		}
	}
	_, err = comp.Dispatch(d.Selector, &dom.Event{Type: d.Event, Key: d.Key})
	return err
}
