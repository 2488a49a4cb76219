package trace

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, `null`},
		{"bool", true, `true`},
		{"int", 42, `42`},
		{"negative int64", int64(-7), `-7`},
		{"integral float", float64(3), `3`},
		{"fraction", 0.5, `0.5`},
		{"large float", 1e21, `1e+21`},
		{"tiny float", 1e-7, `1e-7`},
		{"no html escaping", "<a & b>", `"<a & b>"`},
		{"control chars", "a\nb\u0001", `"a\nb\u0001"`},
		{"line separator kept", "a\u2028b", "\"a\u2028b\""},
		{"nfc", "e\u0301", "\"\u00e9\""},
		{"array", []any{1, "x", nil}, `[1,"x",null]`},
		{"string slice", []string{"b", "a"}, `["b","a"]`},
		{"sorted keys", map[string]any{"b": 1, "a": 2}, `{"a":2,"b":1}`},
		{"typed map", map[string]bool{"on": true}, `{"on":true}`},
		{"utf16 key order", map[string]any{"\U0001F600": 1, "\uFF21": 2}, "{\"\U0001F600\":1,\"\uFF21\":2}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_Errors(t *testing.T) {
	for _, in := range []any{math.NaN(), math.Inf(1), map[int]any{1: 1}, struct{}{}, []any{math.NaN()}} {
		_, err := MarshalCanonical(in)
		assert.Error(t, err, "%#v", in)
	}
}

func TestValueHash(t *testing.T) {
	assert.Equal(t, ValueHash("x"), ValueHash("x"))
	assert.NotEqual(t, ValueHash("x"), ValueHash("y"))
	assert.Equal(t, ValueHash(1), ValueHash(1.0), "numbers hash by value")
	assert.Equal(t, ValueHash("e\u0301"), ValueHash("\u00e9"), "strings hash after NFC")
	assert.NotEqual(t, ValueHash(true), ValueHash("true"))
	assert.Len(t, ValueHash(struct{ A int }{1}), 64, "unsupported values still hash")

	assert.Equal(t, RenderHash("<p>e\u0301</p>"), RenderHash("<p>\u00e9</p>"))
	assert.NotEqual(t, RenderHash("<p>a</p>"), ValueHash("<p>a</p>"), "domains are separated")
}
