package expr

import (
	"errors"
	"math"
)

// Eval evaluates the program with this bound to the given context and args
// supplying the declared parameters. Bare identifiers resolve against args
// first, then against members of this.
func (p *Program) Eval(this any, args map[string]any) (any, error) {
	ev := &evaluator{src: p.src, this: this, args: args}
	v, err := ev.eval(p.root)
	if err != nil {
		var ee *EvalError
		if errors.As(err, &ee) && ee.Src == "" {
			ee.Src = p.src
		}
		return nil, err
	}
	return v, nil
}

type evaluator struct {
	src  string
	this any
	args map[string]any
}

func (ev *evaluator) eval(n node) (any, error) {
	switch n := n.(type) {
	case *literal:
		return n.value, nil
	case *thisExpr:
		return ev.this, nil
	case *ident:
		return ev.resolve(n.name, true)
	case *member:
		obj, err := ev.eval(n.object)
		if err != nil {
			return nil, err
		}
		v, _, err := lookup(obj, n.property, true)
		return v, err
	case *index:
		obj, err := ev.eval(n.object)
		if err != nil {
			return nil, err
		}
		key, err := ev.eval(n.index)
		if err != nil {
			return nil, err
		}
		return Index(obj, key)
	case *call:
		return ev.call(n)
	case *unary:
		x, err := ev.eval(n.x)
		if err != nil {
			return nil, err
		}
		switch n.op {
		case "!":
			return !Truthy(x), nil
		case "-":
			return -ToNumber(x), nil
		default:
			return ToNumber(x), nil
		}
	case *binary:
		l, err := ev.eval(n.l)
		if err != nil {
			return nil, err
		}
		r, err := ev.eval(n.r)
		if err != nil {
			return nil, err
		}
		return binaryOp(n.op, l, r), nil
	case *logical:
		l, err := ev.eval(n.l)
		if err != nil {
			return nil, err
		}
		if (n.op == "&&") != Truthy(l) {
			return l, nil
		}
		return ev.eval(n.r)
	case *conditional:
		test, err := ev.eval(n.test)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return ev.eval(n.then)
		}
		return ev.eval(n.els)
	case *assign:
		return ev.assign(n)
	case *arrayLit:
		out := make([]any, len(n.elems))
		for i, e := range n.elems {
			v, err := ev.eval(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *objectLit:
		out := make(map[string]any, len(n.keys))
		for i, k := range n.keys {
			v, err := ev.eval(n.values[i])
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}
	return nil, typeErrorf("unsupported expression")
}

// resolve looks up a bare identifier.
func (ev *evaluator) resolve(name string, invokeGetters bool) (any, error) {
	if v, ok := ev.args[name]; ok {
		return v, nil
	}
	if !isNil(ev.this) {
		v, ok, err := lookup(ev.this, name, invokeGetters)
		if err != nil {
			return nil, err
		}
		if ok {
			return v, nil
		}
	}
	return nil, &EvalError{Code: ErrCodeReference, Message: name + " is not defined"}
}

func (ev *evaluator) call(n *call) (any, error) {
	var (
		callee any
		name   string
		err    error
	)
	switch c := n.callee.(type) {
	case *member:
		var obj any
		obj, err = ev.eval(c.object)
		if err != nil {
			return nil, err
		}
		name = c.property
		callee, _, err = lookup(obj, c.property, false)
	case *ident:
		name = c.name
		callee, err = ev.resolve(c.name, false)
	default:
		name = "expression"
		callee, err = ev.eval(c)
	}
	if err != nil {
		return nil, err
	}

	args := make([]any, len(n.args))
	for i, a := range n.args {
		if args[i], err = ev.eval(a); err != nil {
			return nil, err
		}
	}
	return callValue(name, callee, args)
}

func (ev *evaluator) assign(n *assign) (any, error) {
	value, err := ev.eval(n.value)
	if err != nil {
		return nil, err
	}
	switch t := n.target.(type) {
	case *ident:
		if _, ok := ev.args[t.name]; ok {
			ev.args[t.name] = value
			return value, nil
		}
		if isNil(ev.this) {
			return nil, &EvalError{Code: ErrCodeReference, Message: t.name + " is not defined"}
		}
		err = SetMember(ev.this, t.name, value)
	case *member:
		obj, err2 := ev.eval(t.object)
		if err2 != nil {
			return nil, err2
		}
		err = SetMember(obj, t.property, value)
	case *index:
		obj, err2 := ev.eval(t.object)
		if err2 != nil {
			return nil, err2
		}
		key, err2 := ev.eval(t.index)
		if err2 != nil {
			return nil, err2
		}
		err = SetIndex(obj, key, value)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func binaryOp(op string, l, r any) any {
	switch op {
	case "+":
		_, ls := l.(string)
		_, rs := r.(string)
		if ls || rs {
			return ToString(l) + ToString(r)
		}
		return ToNumber(l) + ToNumber(r)
	case "-":
		return ToNumber(l) - ToNumber(r)
	case "*":
		return ToNumber(l) * ToNumber(r)
	case "/":
		return ToNumber(l) / ToNumber(r)
	case "%":
		return math.Mod(ToNumber(l), ToNumber(r))
	case "===":
		return StrictEqual(l, r)
	case "!==":
		return !StrictEqual(l, r)
	case "==":
		return LooseEqual(l, r)
	case "!=":
		return !LooseEqual(l, r)
	}

	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch op {
		case "<":
			return ls < rs
		case "<=":
			return ls <= rs
		case ">":
			return ls > rs
		default:
			return ls >= rs
		}
	}
	lf, rf := ToNumber(l), ToNumber(r)
	switch op {
	case "<":
		return lf < rf
	case "<=":
		return lf <= rf
	case ">":
		return lf > rf
	default:
		return lf >= rf
	}
}
