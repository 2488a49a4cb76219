package compiler

import (
	"errors"
	"sort"

	"golang.org/x/net/html"

	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/expr"
)

// Graph is the compiled form of a subtree: its directive-carrying elements
// in document order, excluding anything under a structural directive.
type Graph struct {
	root     *html.Node
	elements []*Element
	cfg      *config
}

// planned is one validated directive attribute, ready to instantiate.
type planned struct {
	attr  string
	src   string
	entry entry
	prog  *expr.Program
	item  string // repeat only
}

// Compile compiles subtree against root, the logical parent used for
// directives on top-level nodes. subtree may be a fragment or an element;
// an element's own directives are included.
//
// Compilation runs in two phases. The first plans every directive in the
// subtree (including under structural elements) without touching the DOM;
// any problem returns a *CompileError. The second instantiates directives,
// which inserts placeholders and attaches listeners.
func Compile(subtree, root *html.Node, opts ...Option) (*Graph, error) {
	if subtree == nil {
		return nil, &CompileError{Code: ErrNilSubtree, Message: "nil subtree"}
	}
	cfg := newConfig(opts)
	g, err := compileNode(subtree, root, cfg)
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug("compiled graph",
		"elements", len(g.elements),
		"root", dom.Path(root),
	)
	return g, nil
}

// compileNode compiles start and its descendants.
func compileNode(start, root *html.Node, cfg *config) (*Graph, error) {
	plans := make(map[*html.Node][]*planned)
	if err := plan(start, cfg, plans); err != nil {
		return nil, err
	}
	g := &Graph{root: root, cfg: cfg}
	g.build(start, plans)
	return g, nil
}

// compileChildren compiles the descendants of parent but not parent itself.
func compileChildren(parent, root *html.Node, cfg *config) (*Graph, error) {
	plans := make(map[*html.Node][]*planned)
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if err := plan(c, cfg, plans); err != nil {
			return nil, err
		}
	}
	g := &Graph{root: root, cfg: cfg}
	for _, c := range dom.Children(parent) {
		g.build(c, plans)
	}
	return g, nil
}

// plan validates every directive attribute under start.
func plan(start *html.Node, cfg *config, plans map[*html.Node][]*planned) error {
	var firstErr error
	dom.Walk(start, func(n *html.Node) bool {
		if firstErr != nil {
			return false
		}
		if n.Type != html.ElementNode {
			return true
		}
		ps, err := planElement(n, cfg)
		if err != nil {
			firstErr = err
			return false
		}
		if len(ps) > 0 {
			plans[n] = ps
		}
		return true
	})
	return firstErr
}

func planElement(n *html.Node, cfg *config) ([]*planned, error) {
	var (
		out        []*planned
		structural string
	)
	for _, a := range n.Attr {
		if a.Namespace != "" {
			continue
		}
		e, ok := directives[a.Key]
		if !ok {
			continue
		}
		p := &planned{attr: a.Key, src: a.Val, entry: e}

		if e.kind == KindStructural {
			if structural != "" {
				return nil, &CompileError{
					Code:    ErrMultipleStructural,
					Attr:    a.Key,
					Path:    dom.Path(n),
					Message: "element already has structural directive " + structural,
				}
			}
			structural = a.Key
			if n.Parent == nil {
				return nil, &CompileError{
					Code:    ErrDetachedStructural,
					Attr:    a.Key,
					Path:    dom.Path(n),
					Message: "structural directive needs a parent to anchor its placeholder",
				}
			}
		}

		src := a.Val
		if a.Key == "[repeat]" {
			item, collection, err := parseRepeat(a.Val)
			if err != nil {
				return nil, &CompileError{
					Code:    ErrInvalidRepeat,
					Attr:    a.Key,
					Expr:    a.Val,
					Path:    dom.Path(n),
					Message: err.Error(),
				}
			}
			p.item = item
			src = collection
		}

		prog, err := cfg.parse(src, e.params)
		if err != nil {
			return nil, &CompileError{
				Code:    ErrInvalidExpression,
				Attr:    a.Key,
				Expr:    a.Val,
				Path:    dom.Path(n),
				Message: err.Error(),
				Err:     err,
			}
		}
		p.prog = prog
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].entry.kind < out[j].entry.kind
	})
	return out, nil
}

// build instantiates planned directives under n. It does not descend into
// elements with a structural directive.
func (g *Graph) build(n *html.Node, plans map[*html.Node][]*planned) {
	if ps, ok := plans[n]; ok {
		if ps[0].attr == "[repeat]" {
			// The template's other directives run on each clone.
			ps = ps[:1]
		}
		el := g.newElement(n, ps)
		g.elements = append(g.elements, el)
		if el.structural {
			return
		}
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		g.build(c, plans)
		c = next
	}
}

func (g *Graph) newElement(n *html.Node, ps []*planned) *Element {
	parent := g.root
	if n.Parent != nil && n.Parent.Type == html.ElementNode {
		parent = n.Parent
	}

	el := &Element{node: n, digests: g.cfg.newCoalescer(), cfg: g.cfg}
	for _, p := range ps {
		b := base{
			name:   p.attr,
			src:    p.src,
			prog:   p.prog,
			node:   n,
			parent: parent,
			cfg:    g.cfg,
		}
		d := p.entry.build(b, p)
		if d.Kind() == KindStructural {
			el.structural = true
		}
		el.directives = append(el.directives, d)
	}
	return el
}

// Root returns the logical root the graph was compiled against.
func (g *Graph) Root() *html.Node {
	return g.root
}

// Elements returns the top-level compiled elements in document order.
func (g *Graph) Elements() []*Element {
	out := make([]*Element, len(g.elements))
	copy(out, g.elements)
	return out
}

// Len returns the number of top-level elements.
func (g *Graph) Len() int {
	return len(g.elements)
}

// Listeners returns the registry action directives attach to.
func (g *Graph) Listeners() *dom.Listeners {
	return g.cfg.listeners
}

// Execute runs every element against ctx. A failing element does not stop
// the others; the failures are joined.
func (g *Graph) Execute(ctx any) error {
	var errs []error
	for _, el := range g.elements {
		if _, err := el.Execute(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Digest fans out to every element's own coalesced digest.
func (g *Graph) Digest(ctx any, immediate bool) error {
	var errs []error
	for _, el := range g.elements {
		if err := el.Digest(ctx, immediate); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending reports whether any element has a scheduled digest waiting.
func (g *Graph) Pending() bool {
	for _, el := range g.elements {
		if el.Pending() {
			return true
		}
	}
	return false
}

// Dispose cancels pending digests and releases every directive.
func (g *Graph) Dispose() {
	for _, el := range g.elements {
		el.Dispose()
	}
}

// Walk visits every directive in the graph, descending into graphs owned by
// [if] and [repeat] directives that have been built.
func (g *Graph) Walk(fn func(Directive)) {
	for _, el := range g.elements {
		for _, d := range el.directives {
			fn(d)
			if n, ok := d.(nester); ok {
				for _, child := range n.Graphs() {
					child.Walk(fn)
				}
			}
		}
	}
}
