// Package manifest loads component manifests written in CUE.
//
// A manifest directory holds one CUE package whose `component` struct maps
// component names to their declarations:
//
//	package ui
//
//	component: Counter: {
//		tag:          "x-counter"
//		templateFile: "counter.html"
//		style:        "p { color: red; }"
//		state: count: 0
//	}
//
// Template and style are given inline (`template`, `style`) or as files
// relative to the manifest directory (`templateFile`, `styleFile`), never
// both. State seeds the host.State the component evaluates against.
package manifest
