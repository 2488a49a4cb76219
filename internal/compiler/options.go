package compiler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/veneer/internal/clock"
	"github.com/roach88/veneer/internal/digest"
	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/expr"
)

// Option configures Compile.
type Option func(*config)

// WithClock sets the clock scheduled digests fire on. Default: clock.Real().
func WithClock(c clock.Clock) Option {
	return func(cfg *config) {
		cfg.clock = c
	}
}

// WithDelay sets the coalescing window for scheduled digests.
//
// Default: 10ms (digest.DefaultDelay)
func WithDelay(d time.Duration) Option {
	return func(cfg *config) {
		cfg.delay = d
	}
}

// WithListeners sets the registry action directives attach to. Components
// pass their own so events dispatched on the live tree reach the graph.
func WithListeners(l *dom.Listeners) Option {
	return func(cfg *config) {
		cfg.listeners = l
	}
}

// WithObserver adds an observer notified of every DOM write. May be given
// more than once.
func WithObserver(o Observer) Option {
	return func(cfg *config) {
		if o != nil {
			cfg.observers = append(cfg.observers, o)
		}
	}
}

// WithErrorHandler sets the handler for errors that have no caller to return
// to: scheduled digests and event handlers. Default: log at Error.
func WithErrorHandler(fn func(error)) Option {
	return func(cfg *config) {
		cfg.onError = fn
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// config is shared by a graph and every graph nested in it.
type config struct {
	clock     clock.Clock
	delay     time.Duration
	listeners *dom.Listeners
	observers []Observer
	onError   func(error)
	logger    *slog.Logger

	mu       sync.Mutex
	programs map[string]*expr.Program
}

func newConfig(opts []Option) *config {
	cfg := &config{
		delay:    digest.DefaultDelay,
		programs: make(map[string]*expr.Program),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = clock.Real()
	}
	if cfg.listeners == nil {
		cfg.listeners = dom.NewListeners()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.onError == nil {
		logger := cfg.logger
		cfg.onError = func(err error) {
			logger.Error("digest failed", "error", err)
		}
	}
	return cfg
}

// parse caches programs by source; the same template is compiled once per
// repeat clone.
func (cfg *config) parse(src string, params []string) (*expr.Program, error) {
	key := src
	for _, p := range params {
		key = p + "\x00" + key
	}

	cfg.mu.Lock()
	prog, ok := cfg.programs[key]
	cfg.mu.Unlock()
	if ok {
		return prog, nil
	}

	prog, err := expr.Parse(src, params...)
	if err != nil {
		return nil, err
	}
	cfg.mu.Lock()
	cfg.programs[key] = prog
	cfg.mu.Unlock()
	return prog, nil
}

func (cfg *config) patch(p Patch) {
	for _, o := range cfg.observers {
		o.OnPatch(p)
	}
}

func (cfg *config) newCoalescer() *digest.Coalescer {
	return digest.NewCoalescer(cfg.clock, cfg.delay)
}
