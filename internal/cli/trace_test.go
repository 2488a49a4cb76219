package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/veneer/internal/clock"
	"github.com/roach88/veneer/internal/compiler"
	"github.com/roach88/veneer/internal/ids"
	"github.com/roach88/veneer/internal/store"
	"github.com/roach88/veneer/internal/trace"
)

// seedTrace records one finished render with two content patches.
func seedTrace(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "trace.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	rec := trace.NewRecorder(st,
		trace.WithIDGenerator(ids.NewSequence("render")),
		trace.WithClock(clock.NewManual(time.Time{})),
	)
	s, err := rec.Begin(ctx, "Counter", "x-counter")
	require.NoError(t, err)
	s.OnPatch(compiler.Patch{Op: compiler.PatchContent, Directive: "[content]", Expr: "this.count", Value: "0"})
	s.OnPatch(compiler.Patch{Op: compiler.PatchContent, Directive: "[content]", Expr: "this.count", Value: "1"})
	s.OnPatch(compiler.Patch{Op: compiler.PatchMount, Directive: "[if]", Expr: "this.on", Value: true})
	require.NoError(t, s.End("<x-counter></x-counter>", nil))
	return db
}

func TestTrace_List(t *testing.T) {
	db := seedTrace(t)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "render-1")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "Counter <x-counter>")
	assert.Contains(t, out, "1970-01-01T00:00:00.000Z")

	out, err = execute(t, "trace", "--db", db, "--component", "Other")
	require.NoError(t, err)
	assert.Contains(t, out, "No renders recorded.")
}

func TestTrace_Render(t *testing.T) {
	db := seedTrace(t)

	out, err := execute(t, "trace", "--db", db, "--render", "render-1", "--op", "content", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "Render: render-1")
	assert.Contains(t, out, `[1] content  [content]="this.count" -> 0`)
	assert.Contains(t, out, `[2] content  [content]="this.count" -> 1`)
	assert.NotContains(t, out, "[3]")
	assert.Contains(t, out, "content: 2")
	assert.Contains(t, out, "mount:   1")
	assert.Contains(t, out, "hash: ")
	assert.Contains(t, out, "<x-counter></x-counter>")
}

func TestTrace_RenderJSON(t *testing.T) {
	db := seedTrace(t)

	out, err := execute(t, "--format", "json", "trace", "--db", db, "--render", "render-1")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 3)
	assert.Equal(t, "1", resp.Data.Timeline[1].Value)
	assert.Equal(t, true, resp.Data.Timeline[2].Value)
	assert.Equal(t, trace.ValueHash("1"), resp.Data.Timeline[1].ValueHash)
	assert.Equal(t, map[string]int{"content": 2, "mount": 1}, resp.Data.Stats)
}

func TestTrace_Errors(t *testing.T) {
	db := seedTrace(t)

	_, err := execute(t, "trace", "--db", db, "--render", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "render not found: missing")

	_, err = execute(t, "trace")
	require.Error(t, err, "--db is required")
}
