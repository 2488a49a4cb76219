package compiler

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"golang.org/x/net/html"

	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/expr"
)

// IndexAttr is stamped on every repeat clone with its position.
const IndexAttr = "data-index"

func placeholder(kind, src string) *html.Node {
	return &html.Node{Type: html.CommentNode, Data: fmt.Sprintf(" %s: %s ", kind, src)}
}

// ifDirective mounts its element while the expression is truthy. A comment
// placeholder inserted at construction marks where the element goes back.
type ifDirective struct {
	base
	placeholder *html.Node
	evaluated   bool
	visible     bool
	children    *Graph
}

func newIf(b base, _ *planned) Directive {
	d := &ifDirective{base: b, placeholder: placeholder("if", b.src)}
	dom.InsertBefore(b.node, d.placeholder)
	return d
}

func (d *ifDirective) Kind() Kind { return KindStructural }

func (d *ifDirective) Value() any {
	if !d.evaluated {
		return nil
	}
	return d.visible
}

// Placeholder returns the anchor comment.
func (d *ifDirective) Placeholder() *html.Node {
	return d.placeholder
}

func (d *ifDirective) Execute(ctx any) (bool, error) {
	v, err := d.eval(ctx, nil)
	if err != nil {
		return false, d.wrap(err)
	}
	show := expr.Truthy(v)

	if !d.evaluated || show != d.visible {
		switch {
		case show && d.node.Parent == nil:
			dom.InsertAfter(d.placeholder, d.node)
			d.emit(PatchMount, true)
		case !show && d.node.Parent != nil:
			dom.Detach(d.node)
			d.emit(PatchUnmount, false)
		}
		d.evaluated = true
		d.visible = show
	}
	if !show {
		return false, nil
	}

	if d.children == nil {
		children, err := compileChildren(d.node, d.node, d.cfg)
		if err != nil {
			return false, err
		}
		d.children = children
	}
	if err := d.children.Execute(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Graphs implements nester.
func (d *ifDirective) Graphs() []*Graph {
	if d.children == nil {
		return nil
	}
	return []*Graph{d.children}
}

func (d *ifDirective) Dispose() {
	if d.children != nil {
		d.children.Dispose()
	}
}

// repeatDirective stamps one clone of its template element per item. The
// collection is compared by reference: a different slice (or a re-sliced
// one) rebuilds every clone, while in-place element writes are not seen.
type repeatDirective struct {
	base
	item        string
	template    *html.Node
	placeholder *html.Node

	evaluated bool
	value     any
	clones    []*repeatClone
}

type repeatClone struct {
	node  *html.Node
	scope *expr.Scope
	graph *Graph
}

func newRepeat(b base, p *planned) Directive {
	d := &repeatDirective{
		base:        b,
		item:        p.item,
		template:    b.node,
		placeholder: placeholder("repeat", b.src),
	}
	dom.InsertBefore(b.node, d.placeholder)
	dom.Detach(b.node)
	return d
}

func (d *repeatDirective) Kind() Kind { return KindStructural }
func (d *repeatDirective) Value() any { return d.value }

// Clones returns the live clone nodes in order.
func (d *repeatDirective) Clones() []*html.Node {
	out := make([]*html.Node, len(d.clones))
	for i, c := range d.clones {
		out[i] = c.node
	}
	return out
}

// Placeholder returns the anchor comment.
func (d *repeatDirective) Placeholder() *html.Node {
	return d.placeholder
}

func (d *repeatDirective) Execute(ctx any) (bool, error) {
	v, err := d.eval(ctx, nil)
	if err != nil {
		return false, d.wrap(err)
	}

	if d.evaluated && expr.SameReference(v, d.value) {
		for _, c := range d.clones {
			c.scope.Parent = ctx
			if err := c.graph.Execute(c.scope); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	items, err := listItems(v)
	if err != nil {
		return false, d.wrap(err)
	}
	d.clear()
	err = d.build(ctx, items)
	d.emit(PatchRepeat, len(d.clones))
	// A partial build is not remembered, so the next digest rebuilds even
	// when the collection reference is unchanged.
	d.evaluated = err == nil
	d.value = v
	if err != nil {
		return false, err
	}
	return true, nil
}

// build creates one clone per item. A clone that fails to execute stays in
// place and the remaining items are still built; the failures are joined.
func (d *repeatDirective) build(ctx any, items []any) error {
	var errs []error
	prev := d.placeholder
	for i, item := range items {
		node := dom.Clone(d.template)
		dom.RemoveAttr(node, d.name)
		dom.SetAttr(node, IndexAttr, strconv.Itoa(i))
		dom.InsertAfter(prev, node)

		scope := &expr.Scope{
			Parent: ctx,
			Vars:   map[string]any{"index": i, d.item: item},
		}
		graph, err := compileNode(node, d.parent, d.cfg)
		if err != nil {
			dom.Detach(node)
			errs = append(errs, err)
			continue
		}
		prev = node
		d.clones = append(d.clones, &repeatClone{node: node, scope: scope, graph: graph})
		if err := graph.Execute(scope); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// clear disposes and removes every clone.
func (d *repeatDirective) clear() {
	for _, c := range d.clones {
		c.graph.Dispose()
		dom.Detach(c.node)
	}
	d.clones = nil
}

// Graphs implements nester.
func (d *repeatDirective) Graphs() []*Graph {
	out := make([]*Graph, len(d.clones))
	for i, c := range d.clones {
		out[i] = c.graph
	}
	return out
}

func (d *repeatDirective) Dispose() {
	for _, c := range d.clones {
		c.graph.Dispose()
	}
}

// listItems flattens a slice or array. nil is an empty list.
func listItems(v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Array {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items, nil
	}
	return nil, fmt.Errorf("repeat: expected a list, got %T", v)
}
