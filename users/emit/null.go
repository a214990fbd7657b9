package emit

// NullEmitter implements Emitter by discarding all events.
//
// It is the default when no emitter is configured, so the service never has to
// nil-check its emitter.
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(Event) {}
