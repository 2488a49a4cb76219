package component

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roach88/veneer/internal/compiler"
	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/expr"
	"github.com/roach88/veneer/internal/ids"
	"github.com/roach88/veneer/internal/observable"
)

// Component is a template instance bound to a host value.
//
// Thread-safety: lifecycle methods must run on the event loop that owns the
// tree. Subscribe and OnDisconnect may be called from any goroutine.
type Component struct {
	id        string
	tag       string
	host      any
	ctx       any
	node      *html.Node // host element
	shadow    *html.Node // shadow root
	content   *html.Node // cloned template content while disconnected
	style     *Stylesheet
	graph     *compiler.Graph
	listeners *dom.Listeners
	logger    *slog.Logger

	constructable bool
	connected     bool
	disposed      bool
	injected      []*html.Node
	adopted       []*Stylesheet

	mu        sync.Mutex
	teardowns []func()
	onConnect []func()
}

// New clones tpl's content, compiles it against a new host element, and
// creates an empty shadow root. host is the evaluation context for every
// directive expression.
func New(host any, tpl *Template, opts ...Option) (*Component, error) {
	o := options{tag: DefaultTag}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids == nil {
		o.ids = ids.UUIDv7{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.listeners == nil {
		o.listeners = dom.NewListeners()
	}

	// Freeze the process-wide sheet on first construction.
	BaseStylesheet()

	c := &Component{
		id:            o.ids.Generate(),
		tag:           o.tag,
		host:          host,
		ctx:           host,
		node:          &html.Node{Type: html.ElementNode, Data: o.tag, DataAtom: atom.Lookup([]byte(o.tag))},
		shadow:        dom.NewFragment(),
		content:       dom.Clone(tpl.Content),
		style:         tpl.Style,
		listeners:     o.listeners,
		constructable: o.constructable,
	}
	c.logger = o.logger.With("component", c.tag, "id", c.id)
	if len(o.bindings) > 0 {
		c.ctx = &expr.Scope{Parent: host, Vars: o.bindings}
	}

	compileOpts := append([]compiler.Option{
		compiler.WithListeners(c.listeners),
		compiler.WithLogger(c.logger),
	}, o.compile...)
	graph, err := compiler.Compile(c.content, c.node, compileOpts...)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", c.tag, err)
	}
	c.graph = graph

	c.logger.Debug("component created", "elements", graph.Len())
	return c, nil
}

// ID returns the instance id.
func (c *Component) ID() string {
	return c.id
}

// Tag returns the host element name.
func (c *Component) Tag() string {
	return c.tag
}

// Host returns the value directives evaluate against.
func (c *Component) Host() any {
	return c.host
}

// Context returns the evaluation context: the host, or a scope layering the
// bindings over it.
func (c *Component) Context() any {
	return c.ctx
}

// Graph returns the compiled graph.
func (c *Component) Graph() *compiler.Graph {
	return c.graph
}

// Node returns the host element.
func (c *Component) Node() *html.Node {
	return c.node
}

// ShadowRoot returns the shadow root. Empty while disconnected.
func (c *Component) ShadowRoot() *html.Node {
	return c.shadow
}

// Listeners returns the event registry the graph's actions listen on.
func (c *Component) Listeners() *dom.Listeners {
	return c.listeners
}

// Connected reports whether Connect has run without a later Disconnect.
func (c *Component) Connected() bool {
	return c.connected
}

// AdoptedStylesheets returns the sheets adopted on the shadow root when
// constructable stylesheets are enabled.
func (c *Component) AdoptedStylesheets() []*Stylesheet {
	out := make([]*Stylesheet, len(c.adopted))
	copy(out, c.adopted)
	return out
}

// Connect applies stylesheets, runs an immediate digest, and moves the
// content into the shadow root. Connecting twice is a no-op.
func (c *Component) Connect() error {
	if c.disposed {
		return fmt.Errorf("connect %s: component disposed", c.tag)
	}
	if c.connected {
		return nil
	}

	c.applyStylesheets()
	if err := c.graph.Digest(c.ctx, true); err != nil {
		c.removeStylesheets()
		return fmt.Errorf("connect %s: %w", c.tag, err)
	}
	dom.MoveChildren(c.shadow, c.content)
	c.connected = true

	c.mu.Lock()
	hooks := make([]func(), len(c.onConnect))
	copy(hooks, c.onConnect)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}

	c.logger.Debug("component connected")
	return nil
}

func (c *Component) applyStylesheets() {
	var sheets []*Stylesheet
	for _, s := range []*Stylesheet{BaseStylesheet(), c.style} {
		if s != nil {
			sheets = append(sheets, s)
		}
	}
	if c.constructable {
		c.adopted = sheets
		return
	}
	for _, s := range sheets {
		style := &html.Node{Type: html.ElementNode, Data: "style", DataAtom: atom.Style}
		style.AppendChild(&html.Node{Type: html.TextNode, Data: s.Text})
		c.shadow.AppendChild(style)
		c.injected = append(c.injected, style)
	}
}

func (c *Component) removeStylesheets() {
	for _, style := range c.injected {
		dom.Detach(style)
	}
	c.injected = nil
	c.adopted = nil
}

// Disconnect empties the shadow root and runs every collected teardown.
// The content is kept so the component can be connected again.
func (c *Component) Disconnect() {
	if c.connected {
		c.removeStylesheets()
		dom.MoveChildren(c.content, c.shadow)
		c.connected = false
		c.logger.Debug("component disconnected")
	}

	c.mu.Lock()
	teardowns := c.teardowns
	c.teardowns = nil
	c.mu.Unlock()
	for _, fn := range teardowns {
		fn()
	}
}

// Dispose disconnects and releases the graph's listeners and timers.
func (c *Component) Dispose() {
	if c.disposed {
		return
	}
	c.Disconnect()
	c.graph.Dispose()
	c.disposed = true
}

// OnDisconnect registers fn to run on the next Disconnect.
func (c *Component) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardowns = append(c.teardowns, fn)
}

// OnConnect registers fn to run after every successful Connect, including
// reconnects. If the component is already connected fn also runs now.
func (c *Component) OnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.mu.Unlock()
	if c.connected {
		fn()
	}
}

// Subscribe wires src to fn for the component's connected lifetime.
func Subscribe[T any](c *Component, src observable.Observable[T], fn func(T)) {
	c.OnDisconnect(src.Subscribe(fn))
}

// DigestOn schedules a digest on every value src publishes.
func DigestOn[T any](c *Component, src observable.Observable[T]) {
	Subscribe(c, src, func(T) {
		_ = c.Digest(false)
	})
}

// DigestWhileConnected subscribes DigestOn on every Connect, so a component
// that is disconnected and connected again keeps following src.
func DigestWhileConnected[T any](c *Component, src observable.Observable[T]) {
	c.OnConnect(func() {
		DigestOn(c, src)
	})
}

// Digest re-evaluates every directive. Immediate digests run now and return
// their error; others are coalesced per element and report errors to the
// configured error handler.
func (c *Component) Digest(immediate bool) error {
	if c.disposed {
		return nil
	}
	return c.graph.Digest(c.ctx, immediate)
}

// root is where live content currently lives.
func (c *Component) root() *html.Node {
	if c.connected {
		return c.shadow
	}
	return c.content
}

// Query returns the first node under the live content matching sel.
func (c *Component) Query(sel string) (*html.Node, error) {
	return dom.Query(c.root(), sel)
}

// QueryAll returns every node under the live content matching sel.
func (c *Component) QueryAll(sel string) ([]*html.Node, error) {
	return dom.QueryAll(c.root(), sel)
}

// Dispatch dispatches ev at the first node matching sel. Returns false if a
// listener prevented the default action.
func (c *Component) Dispatch(sel string, ev *dom.Event) (bool, error) {
	n, err := c.Query(sel)
	if err != nil {
		return false, err
	}
	if n == nil {
		return false, fmt.Errorf("dispatch %s: no element matches %q", ev.Type, sel)
	}
	return c.listeners.Dispatch(n, ev), nil
}

// Render writes the host element with its shadow root as declarative
// shadow DOM.
func (c *Component) Render(w io.Writer) error {
	if _, err := fmt.Fprintf(w, `<%s><template shadowrootmode="open">`, c.tag); err != nil {
		return err
	}
	if err := dom.Render(w, c.shadow); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, `</template></%s>`, c.tag)
	return err
}

// HTML returns Render's output as a string.
func (c *Component) HTML() string {
	var sb strings.Builder
	_ = c.Render(&sb)
	return sb.String()
}
