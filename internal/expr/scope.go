package expr

// Scope layers local variables over a parent context. Lookups that miss
// Vars fall through to Parent; assignments to names not in Vars go to Parent.
type Scope struct {
	Parent any
	Vars   map[string]any
}

// Get implements Getter.
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.Vars[name]
	return v, ok
}

// Delegate implements Delegator.
func (s *Scope) Delegate() any {
	return s.Parent
}

// Set implements Setter.
func (s *Scope) Set(name string, value any) error {
	if _, ok := s.Vars[name]; ok {
		s.Vars[name] = value
		return nil
	}
	return SetMember(s.Parent, name, value)
}
