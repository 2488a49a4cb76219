package component

import (
	"log/slog"
	"time"

	"github.com/roach88/veneer/internal/clock"
	"github.com/roach88/veneer/internal/compiler"
	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/ids"
)

// DefaultTag is the host element name when WithTag is not given.
const DefaultTag = "x-component"

// Option configures a Component.
type Option func(*options)

type options struct {
	tag           string
	constructable bool
	bindings      map[string]any
	listeners     *dom.Listeners
	ids           ids.Generator
	logger        *slog.Logger
	compile       []compiler.Option
}

// WithTag sets the host element name, e.g. "x-counter".
func WithTag(tag string) Option {
	return func(o *options) {
		o.tag = tag
	}
}

// WithConstructableStylesheets adopts stylesheets on the shadow root instead
// of injecting <style> elements into it.
func WithConstructableStylesheets(enabled bool) Option {
	return func(o *options) {
		o.constructable = enabled
	}
}

// WithBindings layers extra names over the host during evaluation. Used for
// components stamped out per item, carrying the iteration variable.
func WithBindings(bindings map[string]any) Option {
	return func(o *options) {
		o.bindings = bindings
	}
}

// WithListeners shares an event registry with the component's graph.
func WithListeners(l *dom.Listeners) Option {
	return func(o *options) {
		o.listeners = l
	}
}

// WithIDGenerator sets the instance id source. Default: ids.UUIDv7.
func WithIDGenerator(g ids.Generator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithLogger sets the logger for the component and its graph.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock sets the clock scheduled digests fire on.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.compile = append(o.compile, compiler.WithClock(c))
	}
}

// WithDelay sets the digest coalescing window.
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		o.compile = append(o.compile, compiler.WithDelay(d))
	}
}

// WithObserver adds an observer of the graph's DOM writes.
func WithObserver(obs compiler.Observer) Option {
	return func(o *options) {
		o.compile = append(o.compile, compiler.WithObserver(obs))
	}
}

// WithErrorHandler handles errors of scheduled digests and event handlers.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.compile = append(o.compile, compiler.WithErrorHandler(fn))
	}
}
