package manifest

import (
	"fmt"

	"github.com/roach88/veneer/internal/component"
	"github.com/roach88/veneer/internal/host"
)

// Build parses the component's markup and style.
func (c *Component) Build() (*component.Template, error) {
	tpl, err := component.NewTemplate(c.Template, c.Style)
	if err != nil {
		return nil, &CompileError{
			Code:      ErrCodeInvalidTemplate,
			Component: c.Name,
			Field:     "template",
			Message:   err.Error(),
			Pos:       c.Pos,
			Err:       err,
		}
	}
	return tpl, nil
}

// Instantiate builds a component whose context is a host.State seeded with
// the manifest state merged with overrides. While connected, the component
// digests whenever the state changes; a reconnect subscribes again.
func (c *Component) Instantiate(overrides map[string]any, opts ...component.Option) (*component.Component, *host.State, error) {
	tpl, err := c.Build()
	if err != nil {
		return nil, nil, err
	}

	seed := make(map[string]any, len(c.State)+len(overrides))
	for k, v := range c.State {
		seed[k] = v
	}
	for k, v := range overrides {
		seed[k] = v
	}
	state := host.NewState(seed)

	base := []component.Option{
		component.WithTag(c.Tag),
		component.WithConstructableStylesheets(c.Constructable),
	}
	comp, err := component.New(state, tpl, append(base, opts...)...)
	if err != nil {
		return nil, nil, &CompileError{
			Code:      ErrCodeInvalidTemplate,
			Component: c.Name,
			Field:     "template",
			Message:   fmt.Sprintf("compiling template: %v", err),
			Pos:       c.Pos,
			Err:       err,
		}
	}
	component.DigestWhileConnected(comp, state.PropChanged())
	return comp, state, nil
}
