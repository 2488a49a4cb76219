package compiler

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/expr"
)

// contentDirective replaces the node's inner markup with the expression's
// string form. The string is inserted as markup, unescaped; templates must
// not feed it untrusted input.
type contentDirective struct {
	base
	value *string
}

func newContent(b base, _ *planned) Directive {
	return &contentDirective{base: b}
}

func (d *contentDirective) Kind() Kind { return KindAttr }
func (d *contentDirective) Dispose()   {}

func (d *contentDirective) Value() any {
	if d.value == nil {
		return nil
	}
	return *d.value
}

func (d *contentDirective) Execute(ctx any) (bool, error) {
	v, err := d.eval(ctx, nil)
	if err != nil {
		return false, d.wrap(err)
	}
	s := expr.ToString(v)
	if d.value != nil && *d.value == s {
		return true, nil
	}
	if err := dom.SetInnerHTML(d.node, s); err != nil {
		return false, d.wrap(err)
	}
	d.value = &s
	d.emit(PatchContent, s)
	return true, nil
}

// classDirective appends the expression's string to the class list the
// element was authored with.
type classDirective struct {
	base
	original string
	value    *string
}

func newClass(b base, _ *planned) Directive {
	original, _ := dom.Attr(b.node, "class")
	return &classDirective{base: b, original: original}
}

func (d *classDirective) Kind() Kind { return KindAttr }
func (d *classDirective) Dispose()   {}

func (d *classDirective) Value() any {
	if d.value == nil {
		return nil
	}
	return *d.value
}

func (d *classDirective) Execute(ctx any) (bool, error) {
	v, err := d.eval(ctx, nil)
	if err != nil {
		return false, d.wrap(err)
	}
	s := expr.ToString(v)
	if d.value != nil && *d.value == s {
		return true, nil
	}
	class := classWith(d.original, s)
	dom.SetAttr(d.node, "class", class)
	d.value = &s
	d.emit(PatchClass, class)
	return true, nil
}

// classesDirective appends every name whose flag is truthy, in name order.
type classesDirective struct {
	base
	original string
	value    map[string]bool
}

func newClasses(b base, _ *planned) Directive {
	original, _ := dom.Attr(b.node, "class")
	return &classesDirective{base: b, original: original}
}

func (d *classesDirective) Kind() Kind { return KindAttr }
func (d *classesDirective) Dispose()   {}

func (d *classesDirective) Value() any {
	if d.value == nil {
		return nil
	}
	return d.value
}

func (d *classesDirective) Execute(ctx any) (bool, error) {
	v, err := d.eval(ctx, nil)
	if err != nil {
		return false, d.wrap(err)
	}
	flags, err := classFlags(v)
	if err != nil {
		return false, d.wrap(err)
	}
	if d.value != nil && cmp.Equal(d.value, flags) {
		return true, nil
	}

	var names []string
	for name, on := range flags {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	class := classWith(d.original, strings.Join(names, " "))
	dom.SetAttr(d.node, "class", class)
	d.value = flags
	d.emit(PatchClass, class)
	return true, nil
}

// classFlags reads a name -> flag mapping from a map with string keys or a
// struct (exported fields, first letter lowered).
func classFlags(v any) (map[string]bool, error) {
	flags := make(map[string]bool)
	if v == nil {
		return flags, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("classes: map key must be a string, got %s", rv.Type().Key())
		}
		iter := rv.MapRange()
		for iter.Next() {
			flags[iter.Key().String()] = expr.Truthy(iter.Value().Interface())
		}
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := strings.ToLower(f.Name[:1]) + f.Name[1:]
			flags[name] = expr.Truthy(rv.Field(i).Interface())
		}
	default:
		return nil, fmt.Errorf("classes: expected a mapping, got %T", v)
	}
	return flags, nil
}
