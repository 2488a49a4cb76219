// Package expr is the expression engine behind template directives.
//
// Directive attributes carry small JavaScript-flavored expressions such as
//
//	'Count: ' + this.count
//	this.deleteEntry(this.index, event)
//	{ 'is-active': this.active, 'is-empty': this.items.length === 0 }
//
// Expressions are parsed once, at template compile time, into an AST and
// evaluated on every digest against a Go value bound as `this` plus named
// arguments (action directives bind `event`). No code is generated at run
// time; anything an expression can reach is reached through reflection over
// the evaluation context.
//
// # Value Model
//
// Numbers are float64 internally (Go integers are read as numbers and written
// back converted to the destination kind). Strings, bools and nil map to their
// JavaScript counterparts; nil doubles as both null and undefined. Object
// literals evaluate to map[string]any and array literals to []any.
//
// Property access on `this` resolves, in order:
//   - Getter / Delegator implementations (Scope, host state bags)
//   - map keys
//   - methods (exact name, then with the first letter upper-cased); a method
//     with no parameters and one result read as a property is invoked, which
//     mirrors JavaScript getters
//   - exported struct fields (same name rules)
//   - `length` on strings, slices, arrays and maps
//
// # Trust Model
//
// Templates are author-supplied. Expressions may call any exported method
// reachable from the context; nothing is sandboxed.
package expr
