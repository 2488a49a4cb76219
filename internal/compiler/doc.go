// Package compiler turns directive-annotated markup into a digestible graph.
//
// A template marks behavior with bracketed attributes:
//
//	<p [content]="'Count: ' + this.count"></p>
//	<li [repeat]="item of this.items" [class]="item.kind"></li>
//	<button [click]="this.increment()" [if]="this.enabled">+</button>
//
// Compile walks a subtree, instantiates one Directive per recognized
// attribute, and wraps every element that carries directives in an Element.
// The resulting Graph is executed against an evaluation context (usually a
// component) on each digest; each directive re-evaluates its expression and
// patches only the node it owns, and only when the value changed.
//
// ARCHITECTURE:
//
//	graph.go       Compile (plan, then build), Graph
//	element.go     Element: ordered directives plus a coalesced digest timer
//	directive.go   Directive interface, Kind ordering, the attribute dispatch table
//	attr.go        [content], [class], [classes]
//	action.go      [click], [change], [input], [blur], [focus], [keypress], [submit]
//	structural.go  [if], [repeat]
//	observer.go    Patch notifications for every DOM write
//	errors.go      CompileError (E2xx codes), DigestError
//
// CRITICAL PATTERNS:
//   - Compile validates the whole subtree before touching the DOM. A
//     CompileError means nothing was mutated and no graph exists.
//   - Per element, directives execute structural -> action -> attribute. A
//     structural directive returning false skips the rest of that element.
//   - Compile does not descend into elements with a structural directive:
//     [if] compiles its own children lazily on first reveal, [repeat]
//     compiles each clone.
//   - Graphs are not safe for concurrent use. Run them on one event loop;
//     scheduled digests fire through the configured clock.
package compiler
