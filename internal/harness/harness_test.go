package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/veneer/internal/ids"
	"github.com/roach88/veneer/internal/manifest"
	"github.com/roach88/veneer/internal/store"
	"github.com/roach88/veneer/internal/trace"
)

func loadUI(t *testing.T) *manifest.Set {
	t.Helper()
	set, errs := manifest.Load(filepath.Join("testdata", "ui"), manifest.LoadModeFailFast)
	require.Empty(t, errs)
	return set
}

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_CounterScenario(t *testing.T) {
	result, err := Run(context.Background(), loadScenario(t, "counter_increments"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Patches, 3)
	assert.Equal(t, "Count: 0", result.Patches[0].Value)
	assert.Equal(t, "Count: 1", result.Patches[1].Value)
	assert.Equal(t, "Count: 5", result.Patches[2].Value)
	assert.Equal(t, map[string]any{"count": float64(5)}, result.State)
	assert.Contains(t, result.HTML, "<x-counter>")
}

func TestRun_TodoScenario(t *testing.T) {
	result, err := Run(context.Background(), loadScenario(t, "todo_select"), WithManifests(loadUI(t)))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "eggs", result.State["selected"])
	assert.Equal(t, []any{"milk", "eggs", "bread"}, result.State["todos"])
}

func TestRun_AssertionFailuresAreReported(t *testing.T) {
	count := 7
	scenario := &Scenario{
		Name:      "failing",
		Component: "Counter",
		Steps: []Step{
			{Digest: true, Assert: []Assertion{
				{Type: AssertText, Selector: "p", Equals: "Count: 9"},
			}},
			{Set: map[string]any{"count": 1}},
		},
		Assertions: []Assertion{
			{Type: AssertPatches, Op: "content", Count: &count},
		},
	}

	result, err := Run(context.Background(), scenario, WithManifests(loadUI(t)))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1, "steps stop at the first failing assertion")
	assert.Contains(t, result.Errors[0], "steps[0].assert[0]: assertion failed: text")
	assert.Contains(t, result.Errors[0], `Expected: "Count: 9"`)
	assert.Contains(t, result.Errors[0], `Actual: "Count: 0"`)
	assert.Equal(t, map[string]any{"count": float64(0)}, result.State)
}

func TestRun_StepErrors(t *testing.T) {
	scenario := &Scenario{
		Name:      "missing_target",
		Component: "Counter",
		Steps: []Step{
			{Dispatch: &Dispatch{Selector: "form", Event: "submit"}},
		},
	}

	result, err := Run(context.Background(), scenario, WithManifests(loadUI(t)))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `steps[0]: dispatch submit: no element matches "form"`)
}

func TestRun_ObjectContent(t *testing.T) {
	scenario := &Scenario{
		Name:      "bad_state",
		Component: "Counter",
		Steps: []Step{
			{Set: map[string]any{"count": map[string]any{"n": 1}}},
			{Advance: "10ms"},
		},
	}

	result, err := Run(context.Background(), scenario, WithManifests(loadUI(t)))
	require.NoError(t, err)
	assert.True(t, result.Pass, "plain objects stringify without error: %v", result.Errors)
	assert.Contains(t, result.HTML, "Count: [object Object]")
}

func TestRun_LifecycleSteps(t *testing.T) {
	zero := 0
	scenario := &Scenario{
		Name:      "lifecycle",
		Component: "Counter",
		Steps: []Step{
			{Disconnect: true, Assert: []Assertion{
				{Type: AssertHTML, Contains: `<template shadowrootmode="open"></template>`},
			}},
			{Set: map[string]any{"count": 3}},
			{Advance: "10ms"},
			{Connect: true},
		},
		Assertions: []Assertion{
			{Type: AssertText, Selector: "p", Equals: "Count: 3"},
			{Type: AssertPatches, Op: "mount", Count: &zero},
		},
	}

	result, err := Run(context.Background(), scenario, WithManifests(loadUI(t)))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnknownComponent(t *testing.T) {
	_, err := Run(context.Background(), &Scenario{Name: "x", Component: "Nope"}, WithManifests(loadUI(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `component "Nope" not found`)
}

func TestRun_NoManifests(t *testing.T) {
	_, err := Run(context.Background(), &Scenario{Name: "x", Component: "Counter"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no manifests")
}

func TestRun_WithRecorder(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	rec := trace.NewRecorder(st, trace.WithIDGenerator(ids.NewSequence("render")))
	result, err := Run(context.Background(), loadScenario(t, "counter_increments"), WithRecorder(rec))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "render-1", result.RenderID)

	ctx := context.Background()
	r, err := st.ReadRender(ctx, result.RenderID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, r.Status)
	assert.Equal(t, "Counter", r.Component)
	assert.Equal(t, result.HTML, r.HTML)

	counts, err := st.CountPatchesByOp(ctx, result.RenderID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"content": 3}, counts)
}

func TestRun_ScheduledDigestErrorsFailTheRun(t *testing.T) {
	scenario := &Scenario{
		Name:      "null_user",
		Component: "Profile",
		Steps: []Step{
			{Set: map[string]any{"user": nil}},
			{Advance: "10ms"},
		},
	}

	result, err := Run(context.Background(), scenario, WithManifests(loadUI(t)))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "digest:")
	assert.Contains(t, result.Errors[0], "this.user.name")
	assert.Contains(t, result.HTML, "<p [content]=\"this.user.name\">ada</p>")
}

func TestRun_ReconnectFollowsState(t *testing.T) {
	scenario := &Scenario{
		Name:      "reconnect",
		Component: "Counter",
		Steps: []Step{
			{Disconnect: true},
			{Connect: true},
			{Set: map[string]any{"count": 7}},
			{Advance: "10ms", Assert: []Assertion{
				{Type: AssertText, Selector: "p", Equals: "Count: 7"},
			}},
		},
	}

	result, err := Run(context.Background(), scenario, WithManifests(loadUI(t)))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
