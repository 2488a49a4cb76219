package compiler

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/roach88/veneer/internal/clock"
	"github.com/roach88/veneer/internal/dom"
)

// patchSpy records every DOM write.
type patchSpy struct {
	patches []Patch
}

func (s *patchSpy) OnPatch(p Patch) {
	s.patches = append(s.patches, p)
}

func (s *patchSpy) count(op PatchOp) int {
	n := 0
	for _, p := range s.patches {
		if p.Op == op {
			n++
		}
	}
	return n
}

type fixture struct {
	frag      *html.Node
	graph     *Graph
	clock     *clock.Manual
	spy       *patchSpy
	listeners *dom.Listeners
	errs      []error
}

func compileFixture(t *testing.T, markup string, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		frag:      dom.MustParseFragment(markup),
		clock:     clock.NewManual(time.Time{}),
		spy:       &patchSpy{},
		listeners: dom.NewListeners(),
	}
	base := []Option{
		WithClock(f.clock),
		WithObserver(f.spy),
		WithListeners(f.listeners),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithErrorHandler(func(err error) { f.errs = append(f.errs, err) }),
	}
	g, err := Compile(f.frag, nil, append(base, opts...)...)
	require.NoError(t, err)
	f.graph = g
	return f
}

func (f *fixture) query(t *testing.T, sel string) *html.Node {
	t.Helper()
	n, err := dom.Query(f.frag, sel)
	require.NoError(t, err)
	require.NotNil(t, n, "no node matches %q", sel)
	return n
}

func (f *fixture) queryAll(t *testing.T, sel string) []*html.Node {
	t.Helper()
	ns, err := dom.QueryAll(f.frag, sel)
	require.NoError(t, err)
	return ns
}

// directive returns the first directive with the given attribute name.
func (f *fixture) directive(t *testing.T, name string) Directive {
	t.Helper()
	var found Directive
	f.graph.Walk(func(d Directive) {
		if found == nil && d.Name() == name {
			found = d
		}
	})
	require.NotNil(t, found, "no %s directive", name)
	return found
}

// countingContext counts property reads; every read returns value.
type countingContext struct {
	reads int
	value any
}

func (c *countingContext) Get(string) (any, bool) {
	c.reads++
	return c.value, true
}
