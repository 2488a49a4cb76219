// Package harness runs rendering scenarios against manifest components.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: counter_increments
//	description: "Clicking the button increments the count"
//	manifests: ../ui          # relative to the scenario file
//	component: Counter
//	state: { count: 0 }       # overrides the manifest state
//	steps:
//	  - dispatch: { selector: button, event: click }
//	  - advance: 10ms
//	    assert:
//	      - { type: text, selector: p, equals: "Count: 1" }
//	  - set: { count: 5 }
//	  - digest: true
//	assertions:
//	  - { type: state, key: count, equals: 5 }
//	  - { type: patches, op: content, count: 3 }
//
// Each step does exactly one thing: set state, dispatch an event, advance
// the clock, run an immediate digest, or connect/disconnect the component.
// A step may carry assertions checked right after it runs.
//
// # Assertion Types
//
//   - text: text of the first node matching selector equals or contains a value
//   - count: number of nodes matching selector
//   - class: node has (or, with absent, lacks) a class
//   - attr: node attribute equals a value (or, with absent, is missing)
//   - state: host state key deep-equals a value
//   - patches: number of recorded patches with op (and directive)
//   - html: serialized component contains a string
//
// # Deterministic Testing
//
// Scenarios run on a manual clock starting at the Unix epoch, with
// sequential component ids, so the rendered HTML and the patch trace are
// identical across runs and can be compared with golden files.
package harness
