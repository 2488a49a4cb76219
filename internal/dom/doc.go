// Package dom provides the in-memory document model the runtime renders into.
//
// Nodes are golang.org/x/net/html nodes. A fragment is an html.DocumentNode
// used as a parentless container, the same way a template's content or a
// component's shadow root is held.
//
// ARCHITECTURE:
//
//	node.go      parse, clone, attribute and tree-mutation helpers
//	selector.go  tag/#id/.class/[attr] selectors with descendant and child combinators
//	event.go     Event, Target and the Listeners registry (bubbling dispatch)
//
// CRITICAL PATTERNS:
//   - Nothing here is safe for concurrent mutation. Trees are owned by a single
//     event loop (see internal/loop); Listeners is the exception and may be
//     registered against from any goroutine.
//   - Listener removal functions are idempotent.
package dom
