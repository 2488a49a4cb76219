package compiler

import (
	"strings"
	"sync"

	"github.com/roach88/veneer/internal/dom"
)

// actionDirective evaluates its expression when its event fires, with
// `event` bound to the dispatched event and `this` bound to the context of
// the most recent digest.
type actionDirective struct {
	base
	event string

	mu     sync.Mutex
	ctx    any
	remove func()
}

func newAction(b base, _ *planned) Directive {
	d := &actionDirective{
		base:  b,
		event: strings.Trim(b.name, "[]"),
	}
	if d.event == "submit" && b.node.Data != "form" {
		b.cfg.logger.Debug("submit directive ignored on non-form element",
			"path", dom.Path(b.node),
			"element", b.node.Data,
		)
		return d
	}
	d.remove = b.cfg.listeners.AddEventListener(b.node, d.event, d.handle)
	return d
}

func (d *actionDirective) Kind() Kind { return KindAction }

// Value returns the context the listener currently evaluates against.
func (d *actionDirective) Value() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

// Execute only refreshes the listener's context; the expression runs on
// events, not digests.
func (d *actionDirective) Execute(ctx any) (bool, error) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()
	return true, nil
}

func (d *actionDirective) handle(ev *dom.Event) {
	if _, err := d.eval(d.Value(), map[string]any{"event": ev}); err != nil {
		d.cfg.onError(d.wrap(err))
	}
}

// Listening reports whether a listener is attached.
func (d *actionDirective) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remove != nil
}

func (d *actionDirective) Dispose() {
	d.mu.Lock()
	remove := d.remove
	d.remove = nil
	d.mu.Unlock()
	if remove != nil {
		remove()
	}
}
