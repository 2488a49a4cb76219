// Package host provides evaluation contexts for components that have no Go
// type of their own, such as components declared in manifests.
package host

import (
	"maps"
	"slices"
	"sync"

	"github.com/roach88/veneer/internal/expr"
	"github.com/roach88/veneer/internal/observable"
)

// State is a map-backed directive context. Expressions read its keys as
// properties of `this`, and assignments from action directives go through
// Set, which publishes the changed name on PropChanged.
//
// Thread-safety: all methods are safe for concurrent use. Subscribers are
// notified without the lock held.
type State struct {
	observable.PropertyNotifier

	mu     sync.RWMutex
	values map[string]any
}

var (
	_ expr.Getter = (*State)(nil)
	_ expr.Setter = (*State)(nil)
)

// NewState returns a State holding a copy of initial.
func NewState(initial map[string]any) *State {
	s := &State{values: make(map[string]any, len(initial))}
	for k, v := range initial {
		s.values[k] = Normalize(v)
	}
	return s
}

// Get implements expr.Getter.
func (s *State) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Set implements expr.Setter. Assigning a value strictly equal to the
// current one does not publish.
func (s *State) Set(name string, value any) error {
	if s.store(name, Normalize(value)) {
		s.NotifyPropertyChanged(name)
	}
	return nil
}

// Update assigns every entry of values and publishes the changed names in
// sorted order.
func (s *State) Update(values map[string]any) {
	var changed []string
	for _, k := range slices.Sorted(maps.Keys(values)) {
		if s.store(k, Normalize(values[k])) {
			changed = append(changed, k)
		}
	}
	s.NotifyPropertyChanged(changed...)
}

func (s *State) store(name string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.values[name]
	if ok && expr.StrictEqual(old, value) {
		return false
	}
	s.values[name] = value
	return true
}

// Keys returns the property names in sorted order.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

// Snapshot returns a shallow copy of the current values.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Normalize converts decoded YAML/CUE values into the shapes expressions
// work with: float64 numbers, []any lists and map[string]any objects.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[expr.ToString(k)] = Normalize(e)
		}
		return out
	}
	return v
}
