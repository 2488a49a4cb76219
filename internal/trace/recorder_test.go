package trace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/veneer/internal/clock"
	"github.com/roach88/veneer/internal/compiler"
	"github.com/roach88/veneer/internal/component"
	"github.com/roach88/veneer/internal/digest"
	"github.com/roach88/veneer/internal/host"
	"github.com/roach88/veneer/internal/ids"
	"github.com/roach88/veneer/internal/store"
)

func newRecorder(t *testing.T) (*Recorder, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	rec := NewRecorder(st,
		WithIDGenerator(ids.NewSequence("render")),
		WithClock(clock.NewManual(time.Time{})),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return rec, st
}

func TestRecorder_RecordsComponentRender(t *testing.T) {
	rec, st := newRecorder(t)
	ctx := context.Background()

	session, err := rec.Begin(ctx, "Toggle", "x-toggle")
	require.NoError(t, err)
	assert.Equal(t, "render-1", session.ID())

	clk := clock.NewManual(time.Time{})
	state := host.NewState(map[string]any{"on": false, "label": "off"})
	c, err := component.New(state,
		component.MustTemplate(`<b [class]="this.on ? 'lit' : ''" [content]="this.label"></b><i [if]="this.on">!</i>`, ""),
		component.WithTag("x-toggle"),
		component.WithClock(clk),
		component.WithObserver(session),
		component.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	component.DigestOn(c, state.PropChanged())
	require.NoError(t, c.Connect())

	state.Update(map[string]any{"on": true, "label": "on"})
	clk.Advance(digest.DefaultDelay)

	require.NoError(t, session.End(c.HTML(), nil))
	require.NoError(t, session.End("ignored", errors.New("ignored")), "End is idempotent")

	r, err := st.ReadRender(ctx, "render-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, r.Status)
	assert.Equal(t, c.HTML(), r.HTML)
	assert.Equal(t, "x-toggle", r.Tag)

	patches, err := st.ReadPatches(ctx, "render-1")
	require.NoError(t, err)
	require.NotEmpty(t, patches)
	assert.Equal(t, session.Patches(), patches)

	for i, p := range patches {
		assert.Equal(t, int64(i+1), p.Seq, "seq is dense")
		assert.Len(t, p.ValueHash, 64)
	}

	var mounted bool
	var labels []any
	for _, p := range patches {
		v, err := DecodeValue(p.Value)
		require.NoError(t, err)
		switch compiler.PatchOp(p.Op) {
		case compiler.PatchMount:
			mounted = true
			assert.Equal(t, "[if]", p.Directive)
			assert.Equal(t, "i", p.Path)
		case compiler.PatchContent:
			labels = append(labels, v)
			assert.Equal(t, ValueHash(v), p.ValueHash)
		}
	}
	assert.True(t, mounted)
	assert.Equal(t, []any{"off", "on"}, labels)
}

func TestRecorder_FailedRender(t *testing.T) {
	rec, st := newRecorder(t)
	ctx := context.Background()

	session, err := rec.Begin(ctx, "Broken", "x-broken")
	require.NoError(t, err)

	c, err := component.New(host.NewState(nil),
		component.MustTemplate(`<p [content]="nope"></p>`, ""),
		component.WithObserver(session),
		component.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	connectErr := c.Connect()
	require.Error(t, connectErr)
	require.NoError(t, session.End(c.HTML(), connectErr))

	r, err := st.ReadRender(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, r.Status)
	assert.Contains(t, r.Error, "nope")
}

func TestSession_IgnoresPatchesAfterEnd(t *testing.T) {
	rec, st := newRecorder(t)
	ctx := context.Background()

	session, err := rec.Begin(ctx, "Late", "x-late")
	require.NoError(t, err)
	session.OnPatch(compiler.Patch{Op: compiler.PatchContent, Directive: "[content]", Value: "a"})
	require.NoError(t, session.End("", nil))
	session.OnPatch(compiler.Patch{Op: compiler.PatchContent, Directive: "[content]", Value: "b"})

	patches, err := st.ReadPatches(ctx, session.ID())
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, "", patches[0].Path, "patches without a node have no path")
}

func TestDecodeValue(t *testing.T) {
	v, err := DecodeValue(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = DecodeValue([]byte{0xc1})
	assert.Error(t, err)
}
