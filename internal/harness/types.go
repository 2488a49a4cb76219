package harness

// PatchEvent is one DOM write recorded during a scenario.
type PatchEvent struct {
	Seq       int64  `json:"seq"`
	Op        string `json:"op"`
	Directive string `json:"directive"`
	Expr      string `json:"expr"`
	Path      string `json:"path"`
	Value     any    `json:"value"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step ran and every assertion matched.
	Pass bool `json:"pass"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// HTML is the component serialized after the last step.
	HTML string `json:"html"`

	// Patches contains every DOM write in order.
	Patches []PatchEvent `json:"patches"`

	// State is the final host state.
	State map[string]any `json:"state,omitempty"`

	// RenderID is the trace store id when a recorder was attached.
	RenderID string `json:"render_id,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Errors:  []string{},
		Patches: []PatchEvent{},
		State:   map[string]any{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) countPatches(op, directive string) int {
	n := 0
	for _, p := range r.Patches {
		if p.Op == op && (directive == "" || p.Directive == directive) {
			n++
		}
	}
	return n
}
