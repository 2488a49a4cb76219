package component

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/veneer/internal/clock"
	"github.com/roach88/veneer/internal/compiler"
	"github.com/roach88/veneer/internal/digest"
	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/ids"
	"github.com/roach88/veneer/internal/observable"
)

// resetBaseStylesheet undoes the process-wide freeze between tests.
func resetBaseStylesheet(css string) {
	baseSheet.mu.Lock()
	defer baseSheet.mu.Unlock()
	baseSheet.css = css
	baseSheet.frozen = false
	baseSheet.sheet = nil
	baseSheet.once = new(sync.Once)
}

type counter struct {
	observable.PropertyNotifier
	Count int
	Items []string
}

func (c *counter) Increment() {
	c.Count++
	c.NotifyPropertyChanged("count")
}

const counterMarkup = `<p [content]="'Count: ' + this.count"></p><button [click]="this.increment()">+</button>`

func newCounter(t *testing.T, host any, markup, css string, opts ...Option) (*Component, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Time{})
	base := []Option{
		WithTag("x-counter"),
		WithClock(clk),
		WithIDGenerator(ids.NewSequence("c")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	c, err := New(host, MustTemplate(markup, css), append(base, opts...)...)
	require.NoError(t, err)
	return c, clk
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
}

func TestComponent_ConnectRendersFirstPaint(t *testing.T) {
	resetBaseStylesheet("")
	c, _ := newCounter(t, &counter{}, counterMarkup, "p { color: red; }")

	assert.Equal(t, "c-1", c.ID())
	assert.Equal(t, `<x-counter><template shadowrootmode="open"></template></x-counter>`, c.HTML())

	require.NoError(t, c.Connect())
	assert.True(t, c.Connected())
	golden(t).Assert(t, "counter_connected", []byte(c.HTML()))
}

func TestComponent_StateChangeDigests(t *testing.T) {
	resetBaseStylesheet("")
	host := &counter{}
	c, clk := newCounter(t, host, counterMarkup, "")
	DigestOn(c, host.PropChanged())
	require.NoError(t, c.Connect())

	for i := 0; i < 3; i++ {
		_, err := c.Dispatch("button", &dom.Event{Type: "click"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, host.Count)

	p, err := c.Query("p")
	require.NoError(t, err)
	assert.Equal(t, "Count: 0", dom.Text(p), "digest is deferred")

	clk.Advance(digest.DefaultDelay)
	assert.Equal(t, "Count: 3", dom.Text(p))
}

func TestComponent_DisconnectTearsDown(t *testing.T) {
	resetBaseStylesheet("")
	host := &counter{}
	c, clk := newCounter(t, host, counterMarkup, "p {}")
	DigestOn(c, host.PropChanged())

	calls := 0
	c.OnDisconnect(func() { calls++ })
	require.NoError(t, c.Connect())

	c.Disconnect()
	c.Disconnect()
	assert.False(t, c.Connected())
	assert.Nil(t, c.ShadowRoot().FirstChild)
	assert.Equal(t, 1, calls, "teardowns run once")

	host.Increment()
	assert.Equal(t, 0, clk.Pending(), "unsubscribed from state")

	// Content survives for a reconnect.
	require.NoError(t, c.Connect())
	p, err := c.Query("p")
	require.NoError(t, err)
	assert.Equal(t, "Count: 1", dom.Text(p))
	styles, err := dom.QueryAll(c.ShadowRoot(), "style")
	require.NoError(t, err)
	assert.Len(t, styles, 1, "stylesheets are not duplicated")
}

func TestComponent_BaseStylesheet(t *testing.T) {
	resetBaseStylesheet("* { margin: 0; }")
	c, _ := newCounter(t, &counter{}, `<p></p>`, "p { color: red; }")

	assert.ErrorIs(t, SetBaseStylesheet("late"), ErrBaseStylesheetFrozen)

	require.NoError(t, c.Connect())
	styles, err := dom.QueryAll(c.ShadowRoot(), "style")
	require.NoError(t, err)
	require.Len(t, styles, 2)
	assert.Equal(t, "* { margin: 0; }", dom.Text(styles[0]))
	assert.Equal(t, "p { color: red; }", dom.Text(styles[1]))

	other, _ := newCounter(t, &counter{}, `<i></i>`, "")
	require.NoError(t, other.Connect())
	style, err := other.Query("style")
	require.NoError(t, err)
	require.NotNil(t, style)
	assert.Equal(t, BaseStylesheet().Text, dom.Text(style), "base sheet is shared")
}

func TestComponent_ConstructableStylesheets(t *testing.T) {
	resetBaseStylesheet("body {}")
	c, _ := newCounter(t, &counter{}, `<p></p>`, "p {}", WithConstructableStylesheets(true))

	require.NoError(t, c.Connect())
	sheets := c.AdoptedStylesheets()
	require.Len(t, sheets, 2)
	assert.Equal(t, "body {}", sheets[0].Text)
	assert.Equal(t, "p {}", sheets[1].Text)

	styles, err := dom.QueryAll(c.ShadowRoot(), "style")
	require.NoError(t, err)
	assert.Empty(t, styles)

	c.Disconnect()
	assert.Empty(t, c.AdoptedStylesheets())
}

func TestComponent_ConnectFailsOnDigestError(t *testing.T) {
	resetBaseStylesheet("")
	c, _ := newCounter(t, &counter{}, `<p [content]="missing"></p>`, "p {}")

	err := c.Connect()
	require.Error(t, err)
	assert.True(t, compiler.IsDigestError(err))
	assert.False(t, c.Connected())
	assert.Nil(t, c.ShadowRoot().FirstChild)
}

func TestComponent_Bindings(t *testing.T) {
	resetBaseStylesheet("")
	c, _ := newCounter(t, &counter{Count: 4}, `<span [content]="item + ':' + this.count"></span>`, "",
		WithBindings(map[string]any{"item": "apple"}))

	require.NoError(t, c.Connect())
	span, err := c.Query("span")
	require.NoError(t, err)
	assert.Equal(t, "apple:4", dom.Text(span))
}

func TestComponent_RepeatGolden(t *testing.T) {
	resetBaseStylesheet("")
	host := &counter{Items: []string{"a", "b"}}
	c, _ := newCounter(t, host, `<ul><li [repeat]="item of this.items" [content]="item"></li></ul>`, "", WithTag("x-list"))

	require.NoError(t, c.Connect())
	golden(t).Assert(t, "list_connected", []byte(c.HTML()))

	host.Items = []string{"z"}
	require.NoError(t, c.Digest(true))
	lis, err := dom.QueryAll(c.ShadowRoot(), "li")
	require.NoError(t, err)
	require.Len(t, lis, 1)
	assert.Equal(t, "z", dom.Text(lis[0]))
}

func TestComponent_TemplateIsNotMutated(t *testing.T) {
	resetBaseStylesheet("")
	tpl := MustTemplate(counterMarkup, "")
	before := dom.OuterHTML(tpl.Content)

	a, err := New(&counter{Count: 1}, tpl)
	require.NoError(t, err)
	b, err := New(&counter{Count: 2}, tpl)
	require.NoError(t, err)
	require.NoError(t, a.Connect())
	require.NoError(t, b.Connect())

	assert.Equal(t, before, dom.OuterHTML(tpl.Content))
	assert.Contains(t, a.HTML(), "Count: 1")
	assert.Contains(t, b.HTML(), "Count: 2")
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestComponent_Dispose(t *testing.T) {
	resetBaseStylesheet("")
	c, clk := newCounter(t, &counter{}, counterMarkup, "")
	require.NoError(t, c.Connect())
	require.NoError(t, c.Digest(false))
	assert.Equal(t, 1, c.Listeners().Len())

	c.Dispose()
	c.Dispose()
	assert.Equal(t, 0, c.Listeners().Len())
	assert.Equal(t, 0, clk.Pending())
	assert.NoError(t, c.Digest(true))
	assert.Error(t, c.Connect())
}

func TestComponent_Errors(t *testing.T) {
	resetBaseStylesheet("")
	_, err := New(&counter{}, MustTemplate(`<p [if]="a" [repeat]="b of c"></p>`, ""))
	assert.True(t, compiler.IsCompileError(err))

	c, _ := newCounter(t, &counter{}, counterMarkup, "")
	require.NoError(t, c.Connect())
	_, err = c.Dispatch("section", &dom.Event{Type: "click"})
	assert.Error(t, err)
	_, err = c.Dispatch("[", &dom.Event{Type: "click"})
	assert.Error(t, err)
}

func TestSubscribe_Generic(t *testing.T) {
	resetBaseStylesheet("")
	c, _ := newCounter(t, &counter{}, `<p></p>`, "")
	subject := observable.NewBehaviorSubject("first")

	var got []string
	Subscribe[string](c, subject, func(v string) { got = append(got, v) })
	subject.Next("second")
	c.Disconnect()
	subject.Next("third")

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestDigestWhileConnected_SurvivesReconnect(t *testing.T) {
	resetBaseStylesheet("")
	host := &counter{}
	c, clk := newCounter(t, host, counterMarkup, "")
	DigestWhileConnected(c, host.PropChanged())

	host.Increment()
	assert.Equal(t, 0, clk.Pending(), "not subscribed before Connect")

	require.NoError(t, c.Connect())
	c.Disconnect()
	host.Increment()
	assert.Equal(t, 0, clk.Pending(), "unsubscribed while disconnected")

	require.NoError(t, c.Connect())
	host.Increment()
	assert.NotZero(t, clk.Pending(), "subscribed again on reconnect")
	clk.Advance(digest.DefaultDelay)

	p, err := c.Query("p")
	require.NoError(t, err)
	assert.Equal(t, "Count: 3", dom.Text(p))
}

func TestOnConnect_RunsNowWhenConnected(t *testing.T) {
	resetBaseStylesheet("")
	c, _ := newCounter(t, &counter{}, `<p></p>`, "")
	require.NoError(t, c.Connect())

	calls := 0
	c.OnConnect(func() { calls++ })
	assert.Equal(t, 1, calls)

	require.NoError(t, c.Connect())
	assert.Equal(t, 1, calls, "connecting twice is a no-op")

	c.Disconnect()
	require.NoError(t, c.Connect())
	assert.Equal(t, 2, calls)
}
