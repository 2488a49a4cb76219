package expr

import (
	"strconv"
)

// Program is a parsed expression, safe to evaluate repeatedly and from
// several directives at once.
type Program struct {
	src    string
	root   node
	params map[string]bool
}

// Parse parses src. params names the arguments the caller will supply at
// evaluation time (action directives declare "event").
func Parse(src string, params ...string) (*Program, error) {
	lx := &lexer{src: src}
	toks, err := lx.tokens()
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}

	if p.peek().kind == tokEOF {
		return nil, &SyntaxError{Src: src, Pos: 0, Msg: "empty expression"}
	}
	root, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected "+describe(tok))
	}

	prog := &Program{src: src, root: root, params: make(map[string]bool, len(params))}
	for _, name := range params {
		prog.params[name] = true
	}
	return prog, nil
}

// MustParse is like Parse but panics on error. For tests and static tables.
func MustParse(src string, params ...string) *Program {
	p, err := Parse(src, params...)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source text.
func (p *Program) String() string {
	return p.src
}

// binary operator precedence; higher binds tighter.
var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3, "===": 3, "!==": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

type parser struct {
	src  string
	toks []token
	i    int
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) advance() token {
	tok := p.toks[p.i]
	if tok.kind != tokEOF {
		p.i++
	}
	return tok
}

func (p *parser) isPunct(text string) bool {
	tok := p.peek()
	return tok.kind == tokPunct && tok.text == text
}

func (p *parser) expect(text string) (token, error) {
	tok := p.peek()
	if tok.kind != tokPunct || tok.text != text {
		return tok, p.errorf(tok, "expected "+strconv.Quote(text)+", found "+describe(tok))
	}
	return p.advance(), nil
}

func (p *parser) errorf(tok token, msg string) *SyntaxError {
	return &SyntaxError{Src: p.src, Pos: tok.pos, Msg: msg}
}

func (p *parser) parseExpression() (node, error) {
	return p.parseAssign()
}

func (p *parser) parseAssign() (node, error) {
	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if !p.isPunct("=") {
		return left, nil
	}
	eq := p.advance()
	switch left.(type) {
	case *ident, *member, *index:
	default:
		return nil, p.errorf(eq, "invalid assignment target")
	}
	value, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return &assign{at: eq.pos, target: left, value: value}, nil
}

func (p *parser) parseConditional() (node, error) {
	test, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if !p.isPunct("?") {
		return test, nil
	}
	q := p.advance()
	then, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return &conditional{at: q.pos, test: test, then: then, els: els}, nil
}

// parseBinary is precedence climbing over the binary operator table.
func (p *parser) parseBinary(minPrec int) (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokPunct {
			return left, nil
		}
		prec, ok := precedence[tok.text]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.advance()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		if tok.text == "&&" || tok.text == "||" {
			left = &logical{at: tok.pos, op: tok.text, l: left, r: right}
		} else {
			left = &binary{at: tok.pos, op: tok.text, l: left, r: right}
		}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.isPunct("!") || p.isPunct("-") || p.isPunct("+") {
		op := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unary{at: op.pos, op: op.text, x: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isPunct("."):
			dot := p.advance()
			name := p.peek()
			if name.kind != tokIdent {
				return nil, p.errorf(name, "expected property name, found "+describe(name))
			}
			p.advance()
			n = &member{at: dot.pos, object: n, property: name.text}
		case p.isPunct("["):
			open := p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			n = &index{at: open.pos, object: n, index: idx}
		case p.isPunct("("):
			open := p.advance()
			args, err := p.parseList(")")
			if err != nil {
				return nil, err
			}
			n = &call{at: open.pos, callee: n, args: args}
		default:
			return n, nil
		}
	}
}

// parseList parses comma-separated expressions up to and including closer.
// A trailing comma is allowed.
func (p *parser) parseList(closer string) ([]node, error) {
	var items []node
	for !p.isPunct(closer) {
		item, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !p.isPunct(",") {
			break
		}
		p.advance()
	}
	if _, err := p.expect(closer); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNumber:
		p.advance()
		return &literal{at: tok.pos, value: tok.num}, nil
	case tokString:
		p.advance()
		return &literal{at: tok.pos, value: tok.text}, nil
	case tokIdent:
		p.advance()
		switch tok.text {
		case "true":
			return &literal{at: tok.pos, value: true}, nil
		case "false":
			return &literal{at: tok.pos, value: false}, nil
		case "null", "undefined":
			return &literal{at: tok.pos, value: nil}, nil
		case "this":
			return &thisExpr{at: tok.pos}, nil
		}
		return &ident{at: tok.pos, name: tok.text}, nil
	case tokPunct:
		switch tok.text {
		case "(":
			p.advance()
			inner, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			p.advance()
			elems, err := p.parseList("]")
			if err != nil {
				return nil, err
			}
			return &arrayLit{at: tok.pos, elems: elems}, nil
		case "{":
			return p.parseObject()
		}
	}
	return nil, p.errorf(tok, "unexpected "+describe(tok))
}

func (p *parser) parseObject() (node, error) {
	open := p.advance()
	obj := &objectLit{at: open.pos}
	for !p.isPunct("}") {
		key := p.advance()
		switch key.kind {
		case tokIdent, tokString:
			obj.keys = append(obj.keys, key.text)
		case tokNumber:
			obj.keys = append(obj.keys, formatNumber(key.num))
		default:
			return nil, p.errorf(key, "expected property key, found "+describe(key))
		}
		if _, err := p.expect(":"); err != nil {
			return nil, err
		}
		value, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		obj.values = append(obj.values, value)
		if !p.isPunct(",") {
			break
		}
		p.advance()
	}
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}
	return obj, nil
}

func describe(tok token) string {
	switch tok.kind {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return "number " + tok.text
	case tokString:
		return "string " + strconv.Quote(tok.text)
	case tokIdent:
		return "identifier " + tok.text
	default:
		return strconv.Quote(tok.text)
	}
}
