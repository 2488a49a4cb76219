package trace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/veneer/internal/clock"
	"github.com/roach88/veneer/internal/compiler"
	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/ids"
	"github.com/roach88/veneer/internal/store"
)

// Recorder opens render sessions against a store.
type Recorder struct {
	store  *store.Store
	ids    ids.Generator
	clock  clock.Clock
	logger *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithIDGenerator sets the render id source. Default: ids.UUIDv7.
func WithIDGenerator(g ids.Generator) Option {
	return func(r *Recorder) {
		r.ids = g
	}
}

// WithClock sets the clock render start times are read from.
func WithClock(c clock.Clock) Option {
	return func(r *Recorder) {
		r.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = l
	}
}

// NewRecorder creates a Recorder writing to st.
func NewRecorder(st *store.Store, opts ...Option) *Recorder {
	r := &Recorder{store: st}
	for _, opt := range opts {
		opt(r)
	}
	if r.ids == nil {
		r.ids = ids.UUIDv7{}
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Begin writes an open render row and returns the session that collects
// its patches.
func (r *Recorder) Begin(ctx context.Context, component, tag string) (*Session, error) {
	s := &Session{
		ctx:       ctx,
		rec:       r,
		id:        r.ids.Generate(),
		component: component,
	}
	err := r.store.WriteRender(ctx, store.Render{
		ID:        s.id,
		Component: component,
		Tag:       tag,
		StartedAt: r.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("begin render %s: %w", component, err)
	}
	r.logger.Debug("render started", "render", s.id, "component", component)
	return s, nil
}

// Session buffers the patches of one render and writes them on End.
//
// Thread-safety: OnPatch may be called from timer goroutines; all methods
// are safe for concurrent use.
type Session struct {
	ctx       context.Context
	rec       *Recorder
	id        string
	component string

	mu      sync.Mutex
	seq     int64
	patches []store.Patch
	err     error
	ended   bool
}

var _ compiler.Observer = (*Session)(nil)

// ID returns the render id.
func (s *Session) ID() string {
	return s.id
}

// OnPatch implements compiler.Observer.
func (s *Session) OnPatch(p compiler.Patch) {
	blob, err := msgpack.Marshal(p.Value)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	if err != nil {
		if s.err == nil {
			s.err = fmt.Errorf("encode %s patch of %s: %w", p.Op, p.Directive, err)
		}
		return
	}

	s.seq++
	path := ""
	if p.Node != nil {
		path = dom.Path(p.Node)
	}
	s.patches = append(s.patches, store.Patch{
		RenderID:  s.id,
		Seq:       s.seq,
		Op:        string(p.Op),
		Directive: p.Directive,
		Expr:      p.Expr,
		Path:      path,
		Value:     blob,
		ValueHash: ValueHash(p.Value),
	})
}

// Patches returns the patches recorded so far.
func (s *Session) Patches() []store.Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Patch, len(s.patches))
	copy(out, s.patches)
	return out
}

// End writes the buffered patches and closes the render with html. A
// non-nil renderErr, or a patch that could not be encoded, marks the
// render failed. Calling End twice is a no-op.
func (s *Session) End(html string, renderErr error) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	patches := s.patches
	if renderErr == nil {
		renderErr = s.err
	}
	s.mu.Unlock()

	if err := s.rec.store.WritePatches(s.ctx, patches); err != nil {
		return fmt.Errorf("end render %s: %w", s.id, err)
	}
	msg := ""
	if renderErr != nil {
		msg = renderErr.Error()
	}
	if err := s.rec.store.FinishRender(s.ctx, s.id, html, msg); err != nil {
		return fmt.Errorf("end render %s: %w", s.id, err)
	}

	s.rec.logger.Debug("render finished",
		"render", s.id,
		"component", s.component,
		"patches", len(patches),
		"failed", renderErr != nil,
	)
	return nil
}

// DecodeValue decodes a stored patch value.
func DecodeValue(blob []byte) (any, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var v any
	if err := msgpack.Unmarshal(blob, &v); err != nil {
		return nil, fmt.Errorf("decode patch value: %w", err)
	}
	return v, nil
}
