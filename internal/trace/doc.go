// Package trace records the DOM patches of component render sessions into
// the SQLite trace store.
//
// A Session is a compiler.Observer. Patches are numbered with a logical
// seq in the order directives performed them, their values are encoded
// with msgpack, and each value carries the hash of its canonical JSON form
// so identical writes can be found across renders.
package trace
