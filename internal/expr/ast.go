package expr

// node is an expression AST node. pos is the byte offset in the source.
type node interface {
	pos() int
}

type literal struct {
	at    int
	value any
}

type thisExpr struct {
	at int
}

type ident struct {
	at   int
	name string
}

type member struct {
	at       int
	object   node
	property string
}

type index struct {
	at     int
	object node
	index  node
}

type call struct {
	at     int
	callee node
	args   []node
}

type unary struct {
	at int
	op string
	x  node
}

type binary struct {
	at   int
	op   string
	l, r node
}

// logical is && or ||; evaluated with short-circuiting.
type logical struct {
	at   int
	op   string
	l, r node
}

type conditional struct {
	at              int
	test, then, els node
}

type assign struct {
	at     int
	target node
	value  node
}

type arrayLit struct {
	at    int
	elems []node
}

type objectLit struct {
	at     int
	keys   []string
	values []node
}

func (n *literal) pos() int     { return n.at }
func (n *thisExpr) pos() int    { return n.at }
func (n *ident) pos() int       { return n.at }
func (n *member) pos() int      { return n.at }
func (n *index) pos() int       { return n.at }
func (n *call) pos() int        { return n.at }
func (n *unary) pos() int       { return n.at }
func (n *binary) pos() int      { return n.at }
func (n *logical) pos() int     { return n.at }
func (n *conditional) pos() int { return n.at }
func (n *assign) pos() int      { return n.at }
func (n *arrayLit) pos() int    { return n.at }
func (n *objectLit) pos() int   { return n.at }
