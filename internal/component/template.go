package component

import (
	"golang.org/x/net/html"

	"github.com/roach88/veneer/internal/dom"
)

// Template is the parsed markup and stylesheet a component is built from.
// Content is never mutated; each component clones it.
type Template struct {
	Content *html.Node
	Style   *Stylesheet
}

// NewTemplate parses markup into a fragment and pairs it with css.
func NewTemplate(markup, css string) (*Template, error) {
	frag, err := dom.ParseFragment(markup)
	if err != nil {
		return nil, err
	}
	return &Template{Content: frag, Style: NewStylesheet(css)}, nil
}

// MustTemplate is like NewTemplate but panics on error.
func MustTemplate(markup, css string) *Template {
	tpl, err := NewTemplate(markup, css)
	if err != nil {
		panic(err)
	}
	return tpl
}
