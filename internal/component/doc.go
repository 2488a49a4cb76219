// Package component hosts a compiled template: the lifecycle owner that
// wires application state to a compiled graph.
//
// A Component clones its Template's content once, compiles it against its
// host element, and owns a shadow root the content moves into on Connect.
// Application state reaches the component only through Subscribe (or
// DigestOn), which records the unsubscribe for Disconnect. DigestWhileConnected
// subscribes again on every Connect.
//
//	tpl := component.MustTemplate(`<p [content]="'Count: ' + this.count"></p>`, `p { color: red }`)
//	c, err := component.New(counter, tpl, component.WithTag("x-counter"))
//	component.DigestOn(c, counter.PropChanged())
//	err = c.Connect()
//
// CRITICAL PATTERNS:
//   - Connect runs one immediate digest before the content is attached, so
//     the first render is never stale. A failed digest fails Connect.
//   - Disconnect and Dispose are idempotent.
//   - The base stylesheet is process-wide and fixed once the first
//     component is constructed.
package component
