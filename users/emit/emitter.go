// Package emit provides event emission and observability for user operations.
package emit

// Emitter receives and processes observability events from the user service.
//
// Implementations should be:
//   - Non-blocking: Avoid slowing down request handling
//   - Thread-safe: Called concurrently from HTTP handler goroutines
//   - Resilient: Never panic, never fail the operation being observed
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	Emit(event Event)
}

// MultiEmitter fans a single event out to several emitters in order.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter returns an emitter that forwards to every non-nil emitter given.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	m := &MultiEmitter{}
	for _, e := range emitters {
		if e != nil {
			m.emitters = append(m.emitters, e)
		}
	}
	return m
}

// Emit forwards the event to each wrapped emitter.
func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}
