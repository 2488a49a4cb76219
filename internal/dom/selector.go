package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Selector is a compiled selector: compound parts joined by descendant
// (whitespace) or child (>) combinators.
type Selector struct {
	src   string
	parts []compound
}

type compound struct {
	child   bool // joined to the previous part by '>'
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

type attrMatch struct {
	key      string
	val      string
	hasValue bool
}

// CompileSelector parses a selector such as `form > input.name[type=text]`.
func CompileSelector(src string) (*Selector, error) {
	s := &Selector{src: src}
	fields := strings.Fields(strings.ReplaceAll(src, ">", " > "))
	child := false
	for _, f := range fields {
		if f == ">" {
			if child || len(s.parts) == 0 {
				return nil, fmt.Errorf("selector %q: misplaced '>'", src)
			}
			child = true
			continue
		}
		c, err := parseCompound(f)
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", src, err)
		}
		c.child = child
		child = false
		s.parts = append(s.parts, c)
	}
	if len(s.parts) == 0 || child {
		return nil, fmt.Errorf("selector %q: empty", src)
	}
	return s, nil
}

// MustCompileSelector is like CompileSelector but panics on error.
func MustCompileSelector(src string) *Selector {
	s, err := CompileSelector(src)
	if err != nil {
		panic(err)
	}
	return s
}

func parseCompound(f string) (compound, error) {
	var c compound
	i := 0
	readName := func() string {
		start := i
		for i < len(f) && !strings.ContainsRune("#.[", rune(f[i])) {
			i++
		}
		return f[start:i]
	}

	if f[0] != '#' && f[0] != '.' && f[0] != '[' {
		c.tag = strings.ToLower(readName())
		if c.tag == "*" {
			c.tag = ""
		}
	}
	for i < len(f) {
		switch f[i] {
		case '#':
			i++
			c.id = readName()
			if c.id == "" {
				return c, fmt.Errorf("empty id")
			}
		case '.':
			i++
			name := readName()
			if name == "" {
				return c, fmt.Errorf("empty class")
			}
			c.classes = append(c.classes, name)
		case '[':
			end := strings.IndexByte(f[i:], ']')
			if end < 0 {
				return c, fmt.Errorf("unterminated attribute selector")
			}
			body := f[i+1 : i+end]
			i += end + 1
			key, val, hasValue := strings.Cut(body, "=")
			if key == "" {
				return c, fmt.Errorf("empty attribute name")
			}
			c.attrs = append(c.attrs, attrMatch{key: key, val: strings.Trim(val, `"'`), hasValue: hasValue})
		default:
			return c, fmt.Errorf("unexpected %q", f[i])
		}
	}
	return c, nil
}

func (c *compound) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && n.Data != c.tag {
		return false
	}
	if c.id != "" {
		if id, _ := Attr(n, "id"); id != c.id {
			return false
		}
	}
	for _, cls := range c.classes {
		if !HasClass(n, cls) {
			return false
		}
	}
	for _, a := range c.attrs {
		v, ok := Attr(n, a.key)
		if !ok || (a.hasValue && v != a.val) {
			return false
		}
	}
	return true
}

// Match reports whether n matches the selector.
func (s *Selector) Match(n *html.Node) bool {
	return s.matchFrom(n, len(s.parts)-1)
}

func (s *Selector) matchFrom(n *html.Node, i int) bool {
	if !s.parts[i].matches(n) {
		return false
	}
	if i == 0 {
		return true
	}
	if s.parts[i].child {
		return n.Parent != nil && s.matchFrom(n.Parent, i-1)
	}
	for anc := n.Parent; anc != nil; anc = anc.Parent {
		if s.matchFrom(anc, i-1) {
			return true
		}
	}
	return false
}

// String returns the selector source.
func (s *Selector) String() string {
	return s.src
}

// QueryAll returns every descendant of root (excluding root) matching sel,
// in document order.
func QueryAll(root *html.Node, sel string) ([]*html.Node, error) {
	s, err := CompileSelector(sel)
	if err != nil {
		return nil, err
	}
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if n != root && s.Match(n) {
			out = append(out, n)
		}
		return true
	})
	return out, nil
}

// Query returns the first descendant of root matching sel, or nil.
func Query(root *html.Node, sel string) (*html.Node, error) {
	all, err := QueryAll(root, sel)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}
