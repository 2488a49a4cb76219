package component

import (
	"errors"
	"sync"
)

// ErrBaseStylesheetFrozen is returned by SetBaseStylesheet after the first
// component has been constructed.
var ErrBaseStylesheetFrozen = errors.New("component: base stylesheet already in use")

// Stylesheet is a component-scoped block of CSS.
type Stylesheet struct {
	Text string
}

// NewStylesheet wraps css. Empty css yields nil.
func NewStylesheet(css string) *Stylesheet {
	if css == "" {
		return nil
	}
	return &Stylesheet{Text: css}
}

// baseSheet is shared by every component in the process. It is configured
// before first use and never torn down.
var baseSheet = struct {
	mu     sync.Mutex
	css    string
	frozen bool
	once   *sync.Once
	sheet  *Stylesheet
}{once: new(sync.Once)}

// SetBaseStylesheet sets the CSS every component adopts ahead of its own.
func SetBaseStylesheet(css string) error {
	baseSheet.mu.Lock()
	defer baseSheet.mu.Unlock()
	if baseSheet.frozen {
		return ErrBaseStylesheetFrozen
	}
	baseSheet.css = css
	return nil
}

// BaseStylesheet returns the shared stylesheet, initializing it on first
// call. nil when no base CSS was set.
func BaseStylesheet() *Stylesheet {
	baseSheet.once.Do(func() {
		baseSheet.mu.Lock()
		defer baseSheet.mu.Unlock()
		baseSheet.frozen = true
		baseSheet.sheet = NewStylesheet(baseSheet.css)
	})
	return baseSheet.sheet
}
