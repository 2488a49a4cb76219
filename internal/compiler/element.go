package compiler

import (
	"golang.org/x/net/html"

	"github.com/roach88/veneer/internal/digest"
)

// Element is one element of a compiled graph: the node, its directives in
// execution order, and a coalesced digest timer.
type Element struct {
	node       *html.Node
	directives []Directive
	structural bool
	digests    *digest.Coalescer
	cfg        *config
}

// Node returns the element's node.
func (e *Element) Node() *html.Node {
	return e.node
}

// Directives returns the directives in execution order.
func (e *Element) Directives() []Directive {
	out := make([]Directive, len(e.directives))
	copy(out, e.directives)
	return out
}

// HasStructural reports whether the element carries [if] or [repeat].
func (e *Element) HasStructural() bool {
	return e.structural
}

// Execute runs every directive against ctx in order, stopping at the first
// one that returns false or fails.
func (e *Element) Execute(ctx any) (bool, error) {
	for _, d := range e.directives {
		ok, err := d.Execute(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Digest executes the element against ctx. An immediate digest runs now and
// returns its error; it does not cancel a pending scheduled one. Otherwise a
// run is scheduled after the coalescing delay unless one is already pending,
// and its error goes to the configured error handler.
func (e *Element) Digest(ctx any, immediate bool) error {
	if immediate {
		_, err := e.Execute(ctx)
		return err
	}
	e.digests.Schedule(func() {
		if _, err := e.Execute(ctx); err != nil {
			e.cfg.onError(err)
		}
	})
	return nil
}

// Pending reports whether a scheduled digest is waiting to fire.
func (e *Element) Pending() bool {
	return e.digests.Pending()
}

// Dispose cancels any pending digest and disposes every directive.
func (e *Element) Dispose() {
	e.digests.Stop()
	for _, d := range e.directives {
		d.Dispose()
	}
}
