package store

import "time"

// RenderStatus is the lifecycle state of a render session.
type RenderStatus string

const (
	StatusOpen   RenderStatus = "open"
	StatusDone   RenderStatus = "done"
	StatusFailed RenderStatus = "failed"
)

// Render is one traced render session of a component.
type Render struct {
	Seq       int64 // assigned on insert
	ID        string
	Component string
	Tag       string
	StartedAt time.Time
	Status    RenderStatus
	HTML      string // final serialized tree, set by FinishRender
	Error     string
}

// Patch is one recorded DOM write.
type Patch struct {
	RenderID  string
	Seq       int64
	Op        string
	Directive string
	Expr      string
	Path      string
	Value     []byte // msgpack-encoded value the directive wrote
	ValueHash string
}
