package compiler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/veneer/internal/digest"
	"github.com/roach88/veneer/internal/dom"
	"github.com/roach88/veneer/internal/expr"
)

func TestContentDirective_CountScenario(t *testing.T) {
	f := compileFixture(t, `<p [content]="'Count: ' + this.count"></p>`)
	p := f.query(t, "p")

	require.NoError(t, f.graph.Execute(map[string]any{"count": 1}))
	assert.Equal(t, "Count: 1", dom.InnerHTML(p))
	assert.Equal(t, 1, f.spy.count(PatchContent))

	require.NoError(t, f.graph.Execute(map[string]any{"count": 2}))
	assert.Equal(t, "Count: 2", dom.InnerHTML(p))
	assert.Equal(t, 2, f.spy.count(PatchContent))

	require.NoError(t, f.graph.Execute(map[string]any{"count": 2}))
	assert.Equal(t, 2, f.spy.count(PatchContent), "unchanged value must not write")
}

func TestContentDirective_IsVerbatimMarkup(t *testing.T) {
	f := compileFixture(t, `<div [content]="this.html"></div>`)

	require.NoError(t, f.graph.Execute(map[string]any{"html": "<b>hi</b>"}))
	assert.Equal(t, "<b>hi</b>", dom.InnerHTML(f.query(t, "div")))
	assert.NotNil(t, f.query(t, "div b"))
}

func TestContentDirective_NilRendersEmpty(t *testing.T) {
	f := compileFixture(t, `<div [content]="this.missing">old</div>`)

	require.NoError(t, f.graph.Execute(map[string]any{}))
	assert.Equal(t, "", dom.InnerHTML(f.query(t, "div")))
}

func TestClassDirective_IsAdditiveAndIdempotent(t *testing.T) {
	f := compileFixture(t, `<div class="a b" [class]="this.extra"></div>`)
	div := f.query(t, "div")

	require.NoError(t, f.graph.Execute(map[string]any{"extra": "c"}))
	class, _ := dom.Attr(div, "class")
	assert.Equal(t, "a b c", class)
	assert.Equal(t, 1, f.spy.count(PatchClass))

	require.NoError(t, f.graph.Execute(map[string]any{"extra": "c"}))
	assert.Equal(t, 1, f.spy.count(PatchClass))

	require.NoError(t, f.graph.Execute(map[string]any{"extra": "d"}))
	class, _ = dom.Attr(div, "class")
	assert.Equal(t, "a b d", class, "replaces the previous directive class, keeps the authored ones")
}

func TestClassDirective_NoAuthoredClass(t *testing.T) {
	f := compileFixture(t, `<div [class]="this.extra"></div>`)

	require.NoError(t, f.graph.Execute(map[string]any{"extra": "only"}))
	class, _ := dom.Attr(f.query(t, "div"), "class")
	assert.Equal(t, "only", class)
}

func TestClassesDirective(t *testing.T) {
	f := compileFixture(t, `<li class="item" [classes]="{done: this.done, active: this.active, zebra: 1}"></li>`)
	li := f.query(t, "li")

	require.NoError(t, f.graph.Execute(map[string]any{"done": true, "active": false}))
	class, _ := dom.Attr(li, "class")
	assert.Equal(t, "item done zebra", class)
	assert.Equal(t, 1, f.spy.count(PatchClass))

	// A fresh but equal mapping is not a change.
	require.NoError(t, f.graph.Execute(map[string]any{"done": true, "active": false}))
	assert.Equal(t, 1, f.spy.count(PatchClass))

	require.NoError(t, f.graph.Execute(map[string]any{"done": true, "active": true}))
	class, _ = dom.Attr(li, "class")
	assert.Equal(t, "item active done zebra", class)
}

func TestClassesDirective_RejectsNonMapping(t *testing.T) {
	f := compileFixture(t, `<li [classes]="'done'"></li>`)
	err := f.graph.Execute(nil)
	assert.True(t, IsDigestError(err))
}

func TestIfDirective_GatesSubtree(t *testing.T) {
	f := compileFixture(t, `<section><div [if]="this.show"><span [content]="this.text"></span></div></section>`)
	section := f.query(t, "section")
	div := section.LastChild
	ifd := f.directive(t, "[if]")

	require.NoError(t, f.graph.Execute(map[string]any{"show": false, "text": "one"}))
	assert.Nil(t, div.Parent, "hidden element is detached")
	assert.Equal(t, `<section><!-- if: this.show --></section>`, dom.OuterHTML(section))
	assert.Empty(t, ifd.(nester).Graphs(), "children are not compiled while hidden")

	require.NoError(t, f.graph.Execute(map[string]any{"show": true, "text": "one"}))
	assert.Equal(t, `<section><!-- if: this.show --><div [if]="this.show"><span [content]="this.text">one</span></div></section>`, dom.OuterHTML(section))
	content := f.directive(t, "[content]")
	assert.Equal(t, "one", content.Value())

	require.NoError(t, f.graph.Execute(map[string]any{"show": false, "text": "two"}))
	assert.Nil(t, div.Parent)
	assert.Equal(t, "one", content.Value(), "descendants must not execute while hidden")
	assert.Equal(t, "one", dom.Text(div))

	require.NoError(t, f.graph.Execute(map[string]any{"show": true, "text": "two"}))
	assert.Equal(t, "two", dom.Text(div))
	assert.Equal(t, 2, f.spy.count(PatchMount))
	assert.Equal(t, 2, f.spy.count(PatchUnmount))
}

func TestIfDirective_FirstTrueDoesNotRewrite(t *testing.T) {
	f := compileFixture(t, `<div [if]="true"></div>`)

	require.NoError(t, f.graph.Execute(nil))
	assert.Equal(t, 0, f.spy.count(PatchMount), "element was never removed")
	assert.Equal(t, true, f.directive(t, "[if]").Value())
}

func TestIfDirective_ShortCircuitsElement(t *testing.T) {
	f := compileFixture(t, `<div [class]="this.c" [if]="this.show"></div>`)
	el := f.graph.Elements()[0]

	ok, err := el.Execute(map[string]any{"show": false, "c": "x"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, f.directive(t, "[class]").Value())
}

func TestRepeatDirective_RebuildsOnNewReference(t *testing.T) {
	f := compileFixture(t, `<ul><li [repeat]="item of this.items" [content]="item + '@' + index"></li></ul>`)
	ul := f.query(t, "ul")

	ctx := map[string]any{"items": []string{"a", "b"}}
	require.NoError(t, f.graph.Execute(ctx))
	lis := f.queryAll(t, "li")
	require.Len(t, lis, 2)
	assert.Equal(t, "a@0", dom.Text(lis[0]))
	assert.Equal(t, "b@1", dom.Text(lis[1]))
	idx, _ := dom.Attr(lis[1], IndexAttr)
	assert.Equal(t, "1", idx)
	assert.False(t, dom.HasAttr(lis[0], "[repeat]"))

	ctx["items"] = []string{"x", "y", "z"}
	require.NoError(t, f.graph.Execute(ctx))
	lis = f.queryAll(t, "li")
	require.Len(t, lis, 3)
	for i, want := range []string{"x@0", "y@1", "z@2"} {
		assert.Equal(t, want, dom.Text(lis[i]))
	}
	for _, old := range []string{"a@0", "b@1"} {
		assert.NotContains(t, dom.InnerHTML(ul), old)
	}
	assert.Equal(t, 2, f.spy.count(PatchRepeat))

	// The placeholder stays first; clones follow it in order.
	assert.Equal(t, " repeat: item of this.items ", ul.FirstChild.Data)
}

func TestRepeatDirective_SameReferenceReexecutesClones(t *testing.T) {
	f := compileFixture(t, `<ul><li [repeat]="item of this.items" [class]="this.mode"></li></ul>`)

	items := []string{"a", "b"}
	require.NoError(t, f.graph.Execute(map[string]any{"items": items, "mode": "x"}))
	require.NoError(t, f.graph.Execute(map[string]any{"items": items, "mode": "y"}))

	assert.Equal(t, 1, f.spy.count(PatchRepeat), "same slice must not rebuild")
	for _, li := range f.queryAll(t, "li") {
		class, _ := dom.Attr(li, "class")
		assert.Equal(t, "y", class, "existing clones see the new context")
	}

	// In-place writes to the same slice are invisible to change detection.
	items[0] = "changed"
	require.NoError(t, f.graph.Execute(map[string]any{"items": items, "mode": "y"}))
	assert.Equal(t, 1, f.spy.count(PatchRepeat))
}

func TestRepeatDirective_FailedCloneDoesNotPinPartialList(t *testing.T) {
	f := compileFixture(t, `<ul><li [repeat]="item of this.items" [content]="item.n"></li></ul>`)

	items := []any{map[string]any{"n": "a"}, nil, map[string]any{"n": "c"}}
	ctx := map[string]any{"items": items}
	err := f.graph.Execute(ctx)
	require.Error(t, err)
	assert.True(t, IsDigestError(err))

	lis := f.queryAll(t, "li")
	require.Len(t, lis, 3, "items after the failing one are still built")
	assert.Equal(t, "a", dom.Text(lis[0]))
	assert.Equal(t, "c", dom.Text(lis[2]))

	// Same reference, but the failed build was not remembered.
	items[1] = map[string]any{"n": "b"}
	require.NoError(t, f.graph.Execute(ctx))
	lis = f.queryAll(t, "li")
	require.Len(t, lis, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, dom.Text(lis[i]))
	}
	assert.Equal(t, 2, f.spy.count(PatchRepeat))

	require.NoError(t, f.graph.Execute(ctx))
	assert.Equal(t, 2, f.spy.count(PatchRepeat), "a complete build is remembered")
}

func TestRepeatDirective_StructItemsAndNestedScope(t *testing.T) {
	type entry struct {
		Title string
		Tags  []string
	}
	f := compileFixture(t, `
		<article [repeat]="e of this.entries">
			<h2 [content]="e.title"></h2>
			<span [repeat]="tag of e.tags" [content]="e.title + ':' + tag"></span>
		</article>`)

	ctx := map[string]any{"entries": []*entry{
		{Title: "one", Tags: []string{"x", "y"}},
		{Title: "two"},
	}}
	require.NoError(t, f.graph.Execute(ctx))

	h2s := f.queryAll(t, "h2")
	require.Len(t, h2s, 2)
	assert.Equal(t, "one", dom.Text(h2s[0]))
	assert.Equal(t, "two", dom.Text(h2s[1]))

	spans := f.queryAll(t, "span")
	require.Len(t, spans, 2)
	assert.Equal(t, "one:x", dom.Text(spans[0]))
	assert.Equal(t, "one:y", dom.Text(spans[1]))
}

func TestRepeatDirective_DisposesRemovedClones(t *testing.T) {
	f := compileFixture(t, `<div><button [repeat]="b of this.buttons" [click]="this.hit = b"></button></div>`)

	ctx := map[string]any{"buttons": []string{"a", "b", "c"}}
	require.NoError(t, f.graph.Execute(ctx))
	assert.Equal(t, 3, f.listeners.Len())

	ctx["buttons"] = []string{"z"}
	require.NoError(t, f.graph.Execute(ctx))
	assert.Equal(t, 1, f.listeners.Len(), "listeners of removed clones are released")

	f.listeners.Dispatch(f.query(t, "button"), &dom.Event{Type: "click"})
	assert.Equal(t, "z", ctx["hit"])
}

func TestRepeatDirective_NilAndInvalidCollections(t *testing.T) {
	f := compileFixture(t, `<ul><li [repeat]="item of this.items"></li></ul>`)

	require.NoError(t, f.graph.Execute(map[string]any{"items": nil}))
	assert.Empty(t, f.queryAll(t, "li"))

	err := f.graph.Execute(map[string]any{"items": 42})
	assert.True(t, IsDigestError(err))
}

func TestActionDirective_RefreshesContext(t *testing.T) {
	f := compileFixture(t, `<button [click]="this.clicks = this.clicks + 1"></button>`)
	button := f.query(t, "button")

	first := map[string]any{"clicks": 0}
	second := map[string]any{"clicks": 0}
	require.NoError(t, f.graph.Execute(first))
	require.NoError(t, f.graph.Execute(second))

	f.listeners.Dispatch(button, &dom.Event{Type: "click"})
	assert.Equal(t, float64(1), second["clicks"])
	assert.Equal(t, 0, first["clicks"])
}

func TestActionDirective_EventArgument(t *testing.T) {
	f := compileFixture(t, `<form [submit]="event.preventDefault()"><input [keypress]="this.key = event.key" [input]="this.text = event.target.value"></form>`)
	form := f.query(t, "form")
	input := f.query(t, "input")

	ctx := map[string]any{}
	require.NoError(t, f.graph.Execute(ctx))

	f.listeners.Dispatch(input, &dom.Event{Type: "keypress", Key: "Enter"})
	assert.Equal(t, "Enter", ctx["key"])

	f.listeners.Dispatch(input, &dom.Event{Type: "input", Target: &dom.Target{Node: input, Value: "typed"}})
	assert.Equal(t, "typed", ctx["text"])

	assert.False(t, f.listeners.Dispatch(form, &dom.Event{Type: "submit"}))
}

func TestActionDirective_SubmitOnlyOnForms(t *testing.T) {
	f := compileFixture(t, `<div [submit]="this.x = 1"></div><form [submit]="this.x = 2"></form>`)

	assert.Equal(t, 0, f.listeners.Count(f.query(t, "div"), "submit"))
	assert.Equal(t, 1, f.listeners.Count(f.query(t, "form"), "submit"))
}

func TestActionDirective_HandlerErrorsGoToHandler(t *testing.T) {
	f := compileFixture(t, `<button [click]="this.nope.deeper"></button>`)
	require.NoError(t, f.graph.Execute(map[string]any{}))

	f.listeners.Dispatch(f.query(t, "button"), &dom.Event{Type: "click"})
	require.Len(t, f.errs, 1)
	assert.True(t, IsDigestError(f.errs[0]))
	assert.True(t, expr.IsTypeError(f.errs[0]))
}

func TestElement_DirectiveOrder(t *testing.T) {
	f := compileFixture(t, `<div><form [class]="'c'" [submit]="this.x = 1" [if]="true" [content]="'x'"></form></div>`)

	els := f.graph.Elements()
	require.Len(t, els, 1)
	assert.True(t, els[0].HasStructural())

	var kinds []Kind
	for _, d := range els[0].Directives() {
		kinds = append(kinds, d.Kind())
	}
	assert.Equal(t, []Kind{KindStructural, KindAction, KindAttr, KindAttr}, kinds)
}

func TestCompile_FlattensWrappers(t *testing.T) {
	f := compileFixture(t, `<div><section><p [content]="'x'"></p></section><aside><i [class]="'y'"></i></aside></div>`)

	els := f.graph.Elements()
	require.Len(t, els, 2)
	assert.Equal(t, "p", els[0].Node().Data)
	assert.Equal(t, "i", els[1].Node().Data)
	assert.Equal(t, "section", f.directive(t, "[content]").Parent().Data)
}

func TestCompile_TopLevelParentIsRoot(t *testing.T) {
	frag := dom.MustParseFragment(`<p [content]="'x'"></p>`)
	host := dom.MustParseFragment(`<x-host></x-host>`).FirstChild

	g, err := Compile(frag, host)
	require.NoError(t, err)
	assert.Same(t, host, g.Elements()[0].Directives()[0].Parent())
	assert.Same(t, host, g.Root())
}

func TestCompile_DoesNotDescendIntoStructural(t *testing.T) {
	f := compileFixture(t, `<div [if]="true"><p [content]="'x'"></p></div>`)
	assert.Equal(t, 1, f.graph.Len())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		code   string
	}{
		{"two structural", `<div [if]="a" [repeat]="x of y"></div>`, ErrMultipleStructural},
		{"bad expression", `<p [content]="1 +"></p>`, ErrInvalidExpression},
		{"empty expression", `<p [content]=""></p>`, ErrInvalidExpression},
		{"bad repeat", `<li [repeat]="items"></li>`, ErrInvalidRepeat},
		{"bad repeat collection", `<li [repeat]="x of ("></li>`, ErrInvalidExpression},
		{"nested under if", `<div [if]="x"><p [class]="("></p></div>`, ErrInvalidExpression},
		{"nested under repeat", `<ul><li [repeat]="x of y"><b [if]="1" [repeat]="z of w"></b></li></ul>`, ErrMultipleStructural},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag := dom.MustParseFragment(tt.markup)
			before := dom.OuterHTML(frag)

			g, err := Compile(frag, nil)
			require.Error(t, err)
			assert.Nil(t, g)

			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.code, ce.Code)
			assert.Equal(t, before, dom.OuterHTML(frag), "failed compile must not mutate the DOM")
		})
	}
}

func TestCompile_DetachedStructural(t *testing.T) {
	el := dom.MustParseFragment(`<div [if]="true"></div>`).FirstChild
	dom.Detach(el)

	_, err := Compile(el, nil)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrDetachedStructural, ce.Code)

	_, err = Compile(nil, nil)
	assert.True(t, IsCompileError(err))
}

func TestElement_DigestCoalesces(t *testing.T) {
	f := compileFixture(t, `<p [content]="this.v"></p>`)
	el := f.graph.Elements()[0]
	ctx := &countingContext{value: "x"}

	for i := 0; i < 5; i++ {
		require.NoError(t, el.Digest(ctx, false))
	}
	assert.True(t, el.Pending())
	assert.Equal(t, 0, ctx.reads)

	f.clock.Advance(digest.DefaultDelay)
	assert.Equal(t, 1, ctx.reads, "a burst runs the directives once")
	assert.False(t, el.Pending())
}

func TestElement_ImmediateDoesNotCancelPending(t *testing.T) {
	f := compileFixture(t, `<p [content]="this.v"></p>`)
	el := f.graph.Elements()[0]
	ctx := &countingContext{value: "x"}

	require.NoError(t, el.Digest(ctx, false))
	require.NoError(t, el.Digest(ctx, true))
	assert.Equal(t, 1, ctx.reads)
	assert.True(t, el.Pending())

	f.clock.Advance(digest.DefaultDelay)
	assert.Equal(t, 2, ctx.reads, "pending digest still fires")
	assert.Equal(t, 1, f.spy.count(PatchContent), "redundant run writes nothing")
}

func TestGraph_ElementsCoalesceIndependently(t *testing.T) {
	f := compileFixture(t, `<p [content]="this.v"></p><i [content]="this.v"></i>`, WithDelay(5*time.Millisecond))
	ctx := &countingContext{value: "x"}

	require.NoError(t, f.graph.Digest(ctx, false))
	require.NoError(t, f.graph.Digest(ctx, false))
	assert.Equal(t, 2, f.clock.Pending())

	f.clock.Advance(5 * time.Millisecond)
	assert.Equal(t, 2, ctx.reads)
}

func TestGraph_ScheduledErrorsGoToHandler(t *testing.T) {
	f := compileFixture(t, `<p [content]="missing"></p>`)

	require.NoError(t, f.graph.Digest(map[string]any{}, false))
	f.clock.Advance(digest.DefaultDelay)

	require.Len(t, f.errs, 1)
	assert.True(t, expr.IsReferenceError(f.errs[0]))
}

func TestGraph_ImmediateErrorsAreReturned(t *testing.T) {
	f := compileFixture(t, `<p [content]="missing"></p><i [content]="'ok'"></i>`)

	err := f.graph.Digest(map[string]any{}, true)
	require.Error(t, err)
	assert.True(t, IsDigestError(err))
	assert.True(t, expr.IsReferenceError(err))
	assert.Equal(t, "ok", dom.Text(f.query(t, "i")), "other elements still run")
}

func TestGraph_DisposeReleasesEverything(t *testing.T) {
	f := compileFixture(t, `<button [click]="this.x = 1"></button><div [if]="true"><a [click]="this.y = 1"></a></div>`)
	require.NoError(t, f.graph.Execute(map[string]any{}))
	assert.Equal(t, 2, f.listeners.Len())

	require.NoError(t, f.graph.Digest(map[string]any{}, false))
	f.graph.Dispose()
	f.graph.Dispose()

	assert.Equal(t, 0, f.listeners.Len())
	assert.False(t, f.graph.Pending())
	assert.Equal(t, 0, f.clock.Pending())
}

func TestIsDirectiveAttr(t *testing.T) {
	for _, name := range []string{"[if]", "[repeat]", "[content]", "[class]", "[classes]", "[click]", "[change]", "[input]", "[blur]", "[focus]", "[keypress]", "[submit]"} {
		assert.True(t, IsDirectiveAttr(name), name)
	}
	assert.False(t, IsDirectiveAttr("class"))
	assert.Len(t, DirectiveAttrs(), 12)
}
