package compiler

import "golang.org/x/net/html"

// PatchOp names the kind of DOM write a directive performed.
type PatchOp string

const (
	PatchContent PatchOp = "content" // inner markup replaced
	PatchClass   PatchOp = "class"   // class attribute rewritten
	PatchMount   PatchOp = "mount"   // element inserted after its placeholder
	PatchUnmount PatchOp = "unmount" // element removed
	PatchRepeat  PatchOp = "repeat"  // clones torn down and rebuilt
)

// Patch describes one DOM write.
type Patch struct {
	Op        PatchOp
	Directive string
	Expr      string
	Node      *html.Node
	Value     any
}

// Observer is notified after every DOM write a directive performs.
type Observer interface {
	OnPatch(Patch)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Patch)

// OnPatch implements Observer.
func (f ObserverFunc) OnPatch(p Patch) {
	f(p)
}
