package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"
)

// Component is one compiled manifest declaration.
type Component struct {
	Name          string
	Tag           string
	Template      string
	Style         string
	State         map[string]any
	Constructable bool

	// TemplatePath and StylePath are set when the markup came from files.
	TemplatePath string
	StylePath    string
	Pos          token.Pos
}

// tagPattern accepts lowercase custom element names, which must contain a
// hyphen.
var tagPattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)+$`)

// CompileComponent parses a CUE value into a Component. File references
// resolve against dir.
//
// The CUE value should be the component struct itself, e.g.:
//
//	v := ctx.CompileString(`component: Counter: { template: "<p></p>" }`)
//	c, err := CompileComponent(v.LookupPath(cue.ParsePath("component.Counter")), ".")
func CompileComponent(v cue.Value, dir string) (*Component, error) {
	c := &Component{Pos: v.Pos()}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		c.Name = labels[len(labels)-1].String()
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, ErrCodeBuildFailed, c.Name, "")
	}

	var err error
	if c.Tag, err = optionalString(v, c.Name, "tag"); err != nil {
		return nil, err
	}
	if c.Tag == "" {
		c.Tag = DefaultTag(c.Name)
	}
	if !tagPattern.MatchString(c.Tag) {
		return nil, &CompileError{
			Code:      ErrCodeInvalidTag,
			Component: c.Name,
			Field:     "tag",
			Message:   fmt.Sprintf("%q is not a custom element name (lowercase, with a hyphen)", c.Tag),
			Pos:       posOf(v, "tag"),
		}
	}

	c.Template, c.TemplatePath, err = source(v, dir, c.Name, "template", ErrCodeTemplate)
	if err != nil {
		return nil, err
	}
	if c.Template == "" && c.TemplatePath == "" {
		return nil, &CompileError{
			Code:      ErrCodeTemplate,
			Component: c.Name,
			Field:     "template",
			Message:   "template or templateFile is required",
			Pos:       v.Pos(),
		}
	}

	c.Style, c.StylePath, err = source(v, dir, c.Name, "style", ErrCodeStyle)
	if err != nil {
		return nil, err
	}

	if c.State, err = parseState(v, c.Name); err != nil {
		return nil, err
	}

	if cv := v.LookupPath(cue.ParsePath("constructable")); cv.Exists() {
		if c.Constructable, err = cv.Bool(); err != nil {
			return nil, formatCUEError(err, ErrCodeGeneric, c.Name, "constructable")
		}
	}
	return c, nil
}

// DefaultTag derives a tag from a component name: "TodoList" becomes
// "todo-list" and "Counter", which has no hyphen to give, "x-counter".
func DefaultTag(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(unicode.ToLower(r))
		case r == '_' || r == ' ':
			sb.WriteByte('-')
		default:
			sb.WriteRune(r)
		}
	}
	tag := sb.String()
	if !strings.Contains(tag, "-") {
		tag = "x-" + tag
	}
	return tag
}

func optionalString(v cue.Value, component, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err, ErrCodeGeneric, component, field)
	}
	return s, nil
}

// source reads the inline field or its File variant. Declaring both is an
// error.
func source(v cue.Value, dir, component, field, code string) (text, path string, err error) {
	inline := v.LookupPath(cue.ParsePath(field))
	file := v.LookupPath(cue.ParsePath(field + "File"))
	if inline.Exists() && file.Exists() {
		return "", "", &CompileError{
			Code:      code,
			Component: component,
			Field:     field,
			Message:   fmt.Sprintf("%s and %sFile are mutually exclusive", field, field),
			Pos:       file.Pos(),
		}
	}
	if inline.Exists() {
		text, err = inline.String()
		if err != nil {
			return "", "", formatCUEError(err, code, component, field)
		}
		return text, "", nil
	}
	if !file.Exists() {
		return "", "", nil
	}

	name, err := file.String()
	if err != nil {
		return "", "", formatCUEError(err, code, component, field+"File")
	}
	path = name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", &CompileError{
			Code:      code,
			Component: component,
			Field:     field + "File",
			Message:   fmt.Sprintf("reading %s: %v", name, err),
			Pos:       file.Pos(),
			Err:       err,
		}
	}
	return string(data), path, nil
}

func parseState(v cue.Value, component string) (map[string]any, error) {
	sv := v.LookupPath(cue.ParsePath("state"))
	if !sv.Exists() {
		return map[string]any{}, nil
	}
	if sv.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Code:      ErrCodeState,
			Component: component,
			Field:     "state",
			Message:   fmt.Sprintf("state must be a struct, got %v", sv.IncompleteKind()),
			Pos:       sv.Pos(),
		}
	}
	if err := sv.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err, ErrCodeState, component, "state")
	}
	state := map[string]any{}
	if err := sv.Decode(&state); err != nil {
		return nil, formatCUEError(err, ErrCodeState, component, "state")
	}
	return state, nil
}

func posOf(v cue.Value, field string) token.Pos {
	if fv := v.LookupPath(cue.ParsePath(field)); fv.Exists() {
		return fv.Pos()
	}
	return v.Pos()
}
