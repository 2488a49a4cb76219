package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// Event is a dispatched DOM event. Expressions see it as `event`.
type Event struct {
	Type   string
	Key    string
	Target *Target

	// CurrentTarget is the node whose listener is running.
	CurrentTarget *html.Node

	defaultPrevented bool
	stopped          bool
}

// Target describes the node an event was dispatched at.
type Target struct {
	Node    *html.Node
	Value   string
	Checked bool
}

// PreventDefault marks the event's default action as cancelled.
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// StopPropagation stops bubbling after the current node's listeners.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// Bubbles reports whether events of type propagate to ancestors.
func Bubbles(eventType string) bool {
	switch eventType {
	case "focus", "blur":
		return false
	}
	return true
}

// Listener handles a dispatched event.
type Listener func(*Event)

type registration struct {
	fn Listener
}

// Listeners is a registry of event listeners keyed by node. One registry
// serves one document tree; components share theirs with compiled graphs.
type Listeners struct {
	mu    sync.Mutex
	byKey map[listenerKey][]*registration
}

type listenerKey struct {
	node      *html.Node
	eventType string
}

// NewListeners creates an empty registry.
func NewListeners() *Listeners {
	return &Listeners{byKey: make(map[listenerKey][]*registration)}
}

// AddEventListener registers fn for eventType on node. The returned function
// removes the registration; calling it more than once is a no-op.
func (l *Listeners) AddEventListener(node *html.Node, eventType string, fn Listener) (remove func()) {
	reg := &registration{fn: fn}
	key := listenerKey{node: node, eventType: eventType}

	l.mu.Lock()
	l.byKey[key] = append(l.byKey[key], reg)
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			regs := l.byKey[key]
			for i, r := range regs {
				if r == reg {
					regs = append(regs[:i:i], regs[i+1:]...)
					break
				}
			}
			if len(regs) == 0 {
				delete(l.byKey, key)
			} else {
				l.byKey[key] = regs
			}
		})
	}
}

// Count returns how many listeners for eventType are registered on node.
func (l *Listeners) Count(node *html.Node, eventType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey[listenerKey{node: node, eventType: eventType}])
}

// Len returns the total number of registrations.
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, regs := range l.byKey {
		n += len(regs)
	}
	return n
}

// Dispatch delivers ev at node and, for bubbling types, at each ancestor.
// ev.Target is filled from node when unset. Returns false if a listener
// called PreventDefault.
func (l *Listeners) Dispatch(node *html.Node, ev *Event) bool {
	if ev.Target == nil {
		ev.Target = TargetOf(node)
	}
	for cur := node; cur != nil; cur = cur.Parent {
		ev.CurrentTarget = cur
		for _, reg := range l.snapshot(cur, ev.Type) {
			reg.fn(ev)
		}
		if ev.stopped || !Bubbles(ev.Type) {
			break
		}
	}
	ev.CurrentTarget = nil
	return !ev.defaultPrevented
}

func (l *Listeners) snapshot(node *html.Node, eventType string) []*registration {
	l.mu.Lock()
	defer l.mu.Unlock()
	regs := l.byKey[listenerKey{node: node, eventType: eventType}]
	out := make([]*registration, len(regs))
	copy(out, regs)
	return out
}

// TargetOf builds a Target from node's value and checked attributes.
func TargetOf(node *html.Node) *Target {
	t := &Target{Node: node}
	t.Value, _ = Attr(node, "value")
	t.Checked = HasAttr(node, "checked")
	return t
}
