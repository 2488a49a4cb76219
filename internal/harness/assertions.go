package harness

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/host"
)

// AssertionError is returned when an assertion fails.
// It carries both sides so the failure reads without the scenario file.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Where    string // Step or final assertion index
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s: assertion failed: %s\n", e.Where, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// check evaluates assertions in order, recording every failure.
// Returns false if any failed.
func (r *runner) check(assertions []Assertion, where string) bool {
	ok := true
	for i, a := range assertions {
		if err := r.assert(a); err != nil {
			if ae, isAssert := err.(*AssertionError); isAssert {
				ae.Where = fmt.Sprintf("%s[%d]", where, i)
			}
			r.addError(err.Error())
			ok = false
		}
	}
	return ok
}

func (r *runner) assert(a Assertion) error {
	switch a.Type {
	case AssertText:
		return r.assertText(a)
	case AssertCount:
		return r.assertCount(a)
	case AssertClass:
		return r.assertClass(a)
	case AssertAttr:
		return r.assertAttr(a)
	case AssertState:
		return r.assertState(a)
	case AssertPatches:
		return r.assertPatches(a)
	case AssertHTML:
		return r.assertHTML(a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func (r *runner) assertText(a Assertion) error {
	node, err := r.comp.Query(a.Selector)
	if err != nil {
		return err
	}
	if node == nil {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("an element matching %q", a.Selector), Actual: "no match"}
	}
	text := dom.Text(node)
	if a.Equals != nil && text != fmt.Sprint(a.Equals) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%q", fmt.Sprint(a.Equals)), Actual: fmt.Sprintf("%q", text)}
	}
	if a.Contains != "" && !strings.Contains(text, a.Contains) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("text containing %q", a.Contains), Actual: fmt.Sprintf("%q", text)}
	}
	return nil
}

func (r *runner) assertCount(a Assertion) error {
	nodes, err := r.comp.QueryAll(a.Selector)
	if err != nil {
		return err
	}
	if len(nodes) != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d elements matching %q", *a.Count, a.Selector),
			Actual:   fmt.Sprintf("%d", len(nodes)),
		}
	}
	return nil
}

func (r *runner) assertClass(a Assertion) error {
	node, err := r.comp.Query(a.Selector)
	if err != nil {
		return err
	}
	if node == nil {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("an element matching %q", a.Selector), Actual: "no match"}
	}
	if dom.HasClass(node, a.Class) == a.Absent {
		want := "class " + a.Class
		if a.Absent {
			want = "no class " + a.Class
		}
		return &AssertionError{Type: a.Type, Expected: want, Actual: fmt.Sprintf("classes %v", dom.Classes(node))}
	}
	return nil
}

func (r *runner) assertAttr(a Assertion) error {
	node, err := r.comp.Query(a.Selector)
	if err != nil {
		return err
	}
	if node == nil {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("an element matching %q", a.Selector), Actual: "no match"}
	}
	val, present := dom.Attr(node, a.Name)
	switch {
	case a.Absent && present:
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("no %s attribute", a.Name), Actual: fmt.Sprintf("%s=%q", a.Name, val)}
	case a.Absent:
		return nil
	case !present:
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s attribute", a.Name), Actual: "missing"}
	case a.Equals != nil && val != fmt.Sprint(a.Equals):
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s=%q", a.Name, fmt.Sprint(a.Equals)), Actual: fmt.Sprintf("%s=%q", a.Name, val)}
	}
	return nil
}

// assertState compares after normalizing YAML numbers to float64, the
// representation host state stores.
func (r *runner) assertState(a Assertion) error {
	actual, present := r.state.Get(a.Key)
	if a.Absent {
		if present {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("no state key %s", a.Key), Actual: fmt.Sprintf("%v", actual)}
		}
		return nil
	}
	if !present {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("state key %s", a.Key), Actual: "missing"}
	}
	want := host.Normalize(a.Equals)
	if !cmp.Equal(want, actual) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %v", a.Key, want),
			Actual:   fmt.Sprintf("%v (-want +got):\n%s", actual, cmp.Diff(want, actual)),
		}
	}
	return nil
}

func (r *runner) assertPatches(a Assertion) error {
	r.mu.Lock()
	n := r.result.countPatches(a.Op, a.Directive)
	r.mu.Unlock()
	if n != *a.Count {
		what := a.Op
		if a.Directive != "" {
			what += " by " + a.Directive
		}
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d %s patches", *a.Count, what), Actual: fmt.Sprintf("%d", n)}
	}
	return nil
}

func (r *runner) assertHTML(a Assertion) error {
	out := r.comp.HTML()
	if !strings.Contains(out, a.Contains) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("html containing %q", a.Contains), Actual: out}
	}
	return nil
}
