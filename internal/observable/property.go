package observable

// PropertyNotifier is embedded by state owners to announce which of their
// properties changed. Components subscribe to PropChanged and decide per
// property name whether to digest.
//
//	type JournalStore struct {
//	    observable.PropertyNotifier
//	    loading bool
//	}
//
//	func (s *JournalStore) SetLoading(v bool) {
//	    s.loading = v
//	    s.NotifyPropertyChanged("loading")
//	}
type PropertyNotifier struct {
	subject *Subject[string]
}

// NewPropertyNotifier returns a ready PropertyNotifier.
func NewPropertyNotifier() *PropertyNotifier {
	return &PropertyNotifier{subject: NewSubject[string]()}
}

func (p *PropertyNotifier) ensure() *Subject[string] {
	if p.subject == nil {
		p.subject = NewSubject[string]()
	}
	return p.subject
}

// PropChanged is the stream of changed property names.
func (p *PropertyNotifier) PropChanged() Observable[string] {
	return p.ensure()
}

// NotifyPropertyChanged publishes each name in order.
func (p *PropertyNotifier) NotifyPropertyChanged(props ...string) {
	s := p.ensure()
	for _, prop := range props {
		s.Next(prop)
	}
}

// SetOnPanic installs a hook for panics raised by PropChanged subscribers.
func (p *PropertyNotifier) SetOnPanic(fn func(recovered any)) {
	s := p.ensure()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OnPanic = fn
}
