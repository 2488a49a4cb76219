package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/veneer/internal/trace"
)

// Snapshot captures the observable outcome of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string
	HTML         string
	Patches      []PatchEvent
	State        map[string]any
}

// NewSnapshot builds a snapshot from a result.
func NewSnapshot(name string, result *Result) *Snapshot {
	return &Snapshot{
		ScenarioName: name,
		HTML:         result.HTML,
		Patches:      result.Patches,
		State:        result.State,
	}
}

// toCanonicalMap converts a Snapshot to the plain maps and slices
// trace.MarshalCanonical accepts.
func (s *Snapshot) toCanonicalMap() map[string]any {
	patches := make([]any, len(s.Patches))
	for i, p := range s.Patches {
		m := map[string]any{
			"seq":       p.Seq,
			"op":        p.Op,
			"directive": p.Directive,
			"expr":      p.Expr,
			"value":     p.Value,
		}
		if p.Path != "" {
			m["path"] = p.Path
		}
		patches[i] = m
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"html":          s.HTML,
		"patches":       patches,
	}
	if len(s.State) > 0 {
		result["state"] = s.State
	}
	return result
}

// MarshalCanonical returns the snapshot as canonical JSON.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	return trace.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario could not run. A snapshot mismatch fails t.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
