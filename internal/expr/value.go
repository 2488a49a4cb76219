package expr

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Getter lets a value resolve its own properties.
type Getter interface {
	Get(name string) (value any, ok bool)
}

// Setter lets a value accept property assignments.
type Setter interface {
	Set(name string, value any) error
}

// Delegator forwards property lookups the value could not resolve itself.
type Delegator interface {
	Delegate() any
}

// function wraps a callable reflect.Value (a bound method or a func value).
type function struct {
	name string
	fn   reflect.Value
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Truthy reports JavaScript truthiness.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	}
	if f, ok := numeric(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return !rv.IsNil()
	}
	return true
}

// ToString converts v to its display string. nil renders as the empty
// string so `'x' + this.missing` does not print "undefined".
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(x)
	case fmt.Stringer:
		return x.String()
	}
	if f, ok := numeric(v); ok {
		return formatNumber(f)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = ToString(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	case reflect.Map, reflect.Struct:
		return "[object Object]"
	case reflect.Pointer:
		if rv.IsNil() {
			return ""
		}
		if rv.Elem().Kind() == reflect.Struct {
			return "[object Object]"
		}
	}
	return fmt.Sprint(v)
}

// ToNumber converts v to a float64 following JavaScript coercion rules.
func ToNumber(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	if f, ok := numeric(v); ok {
		return f
	}
	return math.NaN()
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// numeric reports whether v is any Go numeric kind and returns it as float64.
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// StrictEqual implements ===. Numbers compare by value across Go kinds;
// maps, slices, pointers and funcs compare by reference.
func StrictEqual(a, b any) bool {
	if a == nil || b == nil {
		return isNil(a) && isNil(b)
	}
	if fa, ok := numeric(a); ok {
		fb, ok := numeric(b)
		return ok && fa == fb
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && sa == sb
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}
	return SameReference(a, b)
}

// LooseEqual implements ==: like === but numbers, numeric strings and bools
// compare numerically.
func LooseEqual(a, b any) bool {
	if StrictEqual(a, b) {
		return true
	}
	if isNil(a) || isNil(b) {
		return false
	}
	_, aNum := numeric(a)
	_, bNum := numeric(b)
	_, aStr := a.(string)
	_, bStr := b.(string)
	_, aBool := a.(bool)
	_, bBool := b.(bool)
	if (aNum || aStr || aBool) && (bNum || bStr || bBool) {
		return ToNumber(a) == ToNumber(b)
	}
	return false
}

// SameReference reports whether a and b are the same container: the same
// slice (data pointer and length), map, pointer, channel or func, or equal
// comparable values otherwise.
func SameReference(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Slice:
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	case reflect.Func:
		return false
	}
	if ra.Type().Comparable() {
		return a == b
	}
	return false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// exportedName upper-cases the first rune: count -> Count.
func exportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

func candidateNames(name string) []string {
	exp := exportedName(name)
	if exp == name {
		return []string{name}
	}
	return []string{name, exp}
}

// Member reads property name of obj. ok is false when obj has no such
// property; reading a property of nil is a type error.
func Member(obj any, name string) (value any, ok bool, err error) {
	return lookup(obj, name, true)
}

// lookup resolves name on obj. When invokeGetters is false, methods are
// returned uncalled so they can be used in call position.
func lookup(obj any, name string, invokeGetters bool) (any, bool, error) {
	if isNil(obj) {
		return nil, false, typeErrorf("cannot read property %q of null", name)
	}
	if g, ok := obj.(Getter); ok {
		if v, found := g.Get(name); found {
			return v, true, nil
		}
	}
	if d, ok := obj.(Delegator); ok {
		parent := d.Delegate()
		if isNil(parent) {
			return nil, false, nil
		}
		return lookup(parent, name, invokeGetters)
	}
	if _, ok := obj.(Getter); ok {
		return nil, false, nil
	}

	rv := reflect.ValueOf(obj)

	if rv.Kind() == reflect.Map {
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false, nil
		}
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false, nil
		}
		return v.Interface(), true, nil
	}

	for _, candidate := range candidateNames(name) {
		if m := rv.MethodByName(candidate); m.IsValid() {
			if invokeGetters && isGetter(m.Type()) {
				v, err := invoke(candidate, m, nil)
				return v, true, err
			}
			return &function{name: candidate, fn: m}, true, nil
		}
	}

	sv := rv
	for sv.Kind() == reflect.Pointer || sv.Kind() == reflect.Interface {
		sv = sv.Elem()
	}
	if sv.Kind() == reflect.Struct {
		for _, candidate := range candidateNames(name) {
			sf, found := sv.Type().FieldByName(candidate)
			if !found || !sf.IsExported() {
				continue
			}
			return sv.FieldByIndex(sf.Index).Interface(), true, nil
		}
	}

	if name == "length" {
		switch sv.Kind() {
		case reflect.String:
			return utf8.RuneCountInString(sv.String()), true, nil
		case reflect.Slice, reflect.Array:
			return sv.Len(), true, nil
		}
	}
	return nil, false, nil
}

// isGetter reports whether a bound method looks like a property getter:
// no parameters, one result (optionally followed by an error).
func isGetter(t reflect.Type) bool {
	if t.NumIn() != 0 {
		return false
	}
	switch t.NumOut() {
	case 1:
		return true
	case 2:
		return t.Out(1) == errorType
	}
	return false
}

// SetMember assigns value to property name of obj.
func SetMember(obj any, name string, value any) error {
	if isNil(obj) {
		return &EvalError{Code: ErrCodeAssign, Message: fmt.Sprintf("cannot set property %q of null", name)}
	}
	if s, ok := obj.(Setter); ok {
		return s.Set(name, value)
	}

	rv := reflect.ValueOf(obj)
	if rv.Kind() == reflect.Map {
		if rv.Type().Key().Kind() != reflect.String {
			return &EvalError{Code: ErrCodeAssign, Message: fmt.Sprintf("cannot set property %q on %T", name, obj)}
		}
		cv, err := convertTo(value, rv.Type().Elem())
		if err != nil {
			return &EvalError{Code: ErrCodeAssign, Message: fmt.Sprintf("cannot set property %q", name), Err: err}
		}
		rv.SetMapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()), cv)
		return nil
	}

	setter := "Set" + exportedName(name)
	if m := rv.MethodByName(setter); m.IsValid() && m.Type().NumIn() == 1 {
		_, err := invoke(setter, m, []any{value})
		return err
	}

	if rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Struct {
		sv := rv.Elem()
		for _, candidate := range candidateNames(name) {
			sf, found := sv.Type().FieldByName(candidate)
			if !found || !sf.IsExported() {
				continue
			}
			field := sv.FieldByIndex(sf.Index)
			cv, err := convertTo(value, field.Type())
			if err != nil {
				return &EvalError{Code: ErrCodeAssign, Message: fmt.Sprintf("cannot set property %q", name), Err: err}
			}
			field.Set(cv)
			return nil
		}
	}
	return &EvalError{Code: ErrCodeAssign, Message: fmt.Sprintf("cannot set property %q on %T", name, obj)}
}

// Index reads obj[key].
func Index(obj any, key any) (any, error) {
	if isNil(obj) {
		return nil, typeErrorf("cannot read index %s of null", ToString(key))
	}
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer && rv.Elem().Kind() != reflect.Struct {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		if s, ok := key.(string); ok && s == "length" {
			v, _, err := lookup(obj, s, true)
			return v, err
		}
		i, ok := arrayIndex(key, rv.Len())
		if !ok {
			return nil, nil
		}
		if rv.Kind() == reflect.String {
			return string(rv.String()[i]), nil
		}
		return rv.Index(i).Interface(), nil
	}
	v, _, err := lookup(obj, ToString(key), true)
	return v, err
}

// SetIndex assigns obj[key] = value.
func SetIndex(obj any, key any, value any) error {
	if isNil(obj) {
		return &EvalError{Code: ErrCodeAssign, Message: "cannot set index of null"}
	}
	rv := reflect.ValueOf(obj)
	if rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Array {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		i, ok := arrayIndex(key, rv.Len())
		if !ok {
			return &EvalError{Code: ErrCodeAssign, Message: fmt.Sprintf("index %s out of range", ToString(key))}
		}
		elem := rv.Index(i)
		if !elem.CanSet() {
			return &EvalError{Code: ErrCodeAssign, Message: "cannot assign into non-addressable array"}
		}
		cv, err := convertTo(value, elem.Type())
		if err != nil {
			return &EvalError{Code: ErrCodeAssign, Message: "cannot assign element", Err: err}
		}
		elem.Set(cv)
		return nil
	}
	return SetMember(obj, ToString(key), value)
}

func arrayIndex(key any, length int) (int, bool) {
	f := ToNumber(key)
	if math.IsNaN(f) || f != math.Trunc(f) || f < 0 || f >= float64(length) {
		return 0, false
	}
	return int(f), true
}

// convertTo coerces v into a reflect.Value assignable to t.
func convertTo(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out := reflect.New(t).Elem()
		out.SetInt(int64(ToNumber(v)))
		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out := reflect.New(t).Elem()
		out.SetUint(uint64(ToNumber(v)))
		return out, nil
	case reflect.Float32, reflect.Float64:
		out := reflect.New(t).Elem()
		out.SetFloat(ToNumber(v))
		return out, nil
	case reflect.String:
		out := reflect.New(t).Elem()
		out.SetString(ToString(v))
		return out, nil
	case reflect.Bool:
		out := reflect.New(t).Elem()
		out.SetBool(Truthy(v))
		return out, nil
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}

// invoke calls fn with args converted to its parameter types.
func invoke(name string, fn reflect.Value, args []any) (result any, err error) {
	t := fn.Type()
	in := make([]reflect.Value, 0, len(args))

	for i := 0; i < t.NumIn(); i++ {
		pt := t.In(i)
		if t.IsVariadic() && i == t.NumIn()-1 {
			for _, a := range args[min(i, len(args)):] {
				cv, err := convertTo(a, pt.Elem())
				if err != nil {
					return nil, &EvalError{Code: ErrCodeCall, Message: fmt.Sprintf("argument %d of %s", i, name), Err: err}
				}
				in = append(in, cv)
			}
			break
		}
		var a any
		if i < len(args) {
			a = args[i]
		}
		cv, err := convertTo(a, pt)
		if err != nil {
			return nil, &EvalError{Code: ErrCodeCall, Message: fmt.Sprintf("argument %d of %s", i, name), Err: err}
		}
		in = append(in, cv)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &EvalError{Code: ErrCodeCall, Message: fmt.Sprintf("%s panicked", name), Err: fmt.Errorf("%v", r)}
		}
	}()

	out := fn.Call(in)
	if n := len(out); n > 0 && t.Out(n-1) == errorType {
		if e, _ := out[n-1].Interface().(error); e != nil {
			return nil, &EvalError{Code: ErrCodeCall, Message: fmt.Sprintf("%s failed", name), Err: e}
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

// callValue calls a value produced by member lookup or a plain Go func.
func callValue(name string, callee any, args []any) (any, error) {
	switch f := callee.(type) {
	case *function:
		return invoke(f.name, f.fn, args)
	case nil:
		return nil, typeErrorf("%s is not a function", name)
	}
	rv := reflect.ValueOf(callee)
	if rv.Kind() != reflect.Func {
		return nil, typeErrorf("%s is not a function", name)
	}
	return invoke(name, rv, args)
}
