package compiler

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/expr"
)

// Kind orders directives within an element. Lower kinds execute first.
type Kind int

const (
	KindStructural Kind = iota
	KindAction
	KindAttr
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindAction:
		return "action"
	case KindAttr:
		return "attr"
	}
	return "unknown"
}

// Directive is a compiled behavior bound to one attribute of one element.
type Directive interface {
	Kind() Kind

	// Name is the attribute name, e.g. "[content]".
	Name() string

	// Expr is the attribute value as written.
	Expr() string

	// Node is the element the directive owns.
	Node() *html.Node

	// Parent is the logical parent: the node's parent element, or the
	// compile root for top-level nodes.
	Parent() *html.Node

	// Value is the cached result used for change detection. nil until the
	// first execution.
	Value() any

	// Execute evaluates against ctx and patches the DOM on change. false
	// means the rest of the element must be skipped.
	Execute(ctx any) (bool, error)

	// Dispose releases listeners and nested graphs. Idempotent.
	Dispose()
}

// nester is implemented by directives that own graphs of their own.
type nester interface {
	Graphs() []*Graph
}

// entry is one row of the dispatch table.
type entry struct {
	kind   Kind
	params []string
	build  func(b base, p *planned) Directive
}

// eventNames are the DOM events with an action directive.
var eventNames = []string{"click", "change", "input", "blur", "focus", "keypress", "submit"}

// directives is the dispatch table from attribute name to constructor.
var directives = func() map[string]entry {
	t := map[string]entry{
		"[if]":      {kind: KindStructural, build: newIf},
		"[repeat]":  {kind: KindStructural, build: newRepeat},
		"[content]": {kind: KindAttr, build: newContent},
		"[class]":   {kind: KindAttr, build: newClass},
		"[classes]": {kind: KindAttr, build: newClasses},
	}
	for _, name := range eventNames {
		t["["+name+"]"] = entry{kind: KindAction, params: []string{"event"}, build: newAction}
	}
	return t
}()

// IsDirectiveAttr reports whether name is a recognized directive attribute.
func IsDirectiveAttr(name string) bool {
	_, ok := directives[name]
	return ok
}

// DirectiveAttrs returns the recognized attribute names.
func DirectiveAttrs() []string {
	out := make([]string, 0, len(directives))
	for name := range directives {
		out = append(out, name)
	}
	return out
}

var repeatPattern = regexp.MustCompile(`^\s*([A-Za-z_$][A-Za-z0-9_$]*)\s+of\s+(.+?)\s*$`)

// parseRepeat splits "item of this.items".
func parseRepeat(src string) (name, collection string, err error) {
	m := repeatPattern.FindStringSubmatch(src)
	if m == nil {
		return "", "", errors.New(`expected "<name> of <expression>"`)
	}
	return m[1], m[2], nil
}

// base carries the fields every directive shares.
type base struct {
	name   string
	src    string
	prog   *expr.Program
	node   *html.Node
	parent *html.Node
	cfg    *config
}

func (b *base) Name() string       { return b.name }
func (b *base) Expr() string       { return b.src }
func (b *base) Node() *html.Node   { return b.node }
func (b *base) Parent() *html.Node { return b.parent }

func (b *base) eval(ctx any, args map[string]any) (any, error) {
	return b.prog.Eval(ctx, args)
}

func (b *base) wrap(err error) error {
	var de *DigestError
	if errors.As(err, &de) {
		return err
	}
	return &DigestError{Directive: b.name, Expr: b.src, Path: dom.Path(b.node), Err: err}
}

func (b *base) emit(op PatchOp, value any) {
	b.cfg.patch(Patch{Op: op, Directive: b.name, Expr: b.src, Node: b.node, Value: value})
}

// classWith appends extra to the original class list.
func classWith(original, extra string) string {
	return strings.TrimSpace(original + " " + extra)
}
