package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory.
//
// Events are kept in emission order and indexed by request ID, so tests can
// assert on exactly what a single request produced.
//
// Warning: the buffer grows without bound. Use it for tests and local
// debugging, not for a long-running server.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	svc, _ := users.NewService(store.NewMemStore[users.User](nil), users.WithEmitter(emitter))
//
//	svc.Create(ctx, "Ada", "ada@example.com")
//	created := emitter.GetHistoryWithFilter("", emit.HistoryFilter{Msg: emit.MsgUserCreated})
type BufferedEmitter struct {
	mu     sync.RWMutex
	all    []Event
	events map[string][]Event // requestID -> events
}

// HistoryFilter specifies criteria for filtering buffered events.
//
// All filter fields are optional. When multiple fields are set, they are
// combined with AND logic.
type HistoryFilter struct {
	Op     string // Filter by operation (empty = no filter)
	Msg    string // Filter by message (empty = no filter)
	UserID string // Filter by target user (empty = no filter)
}

// NewBufferedEmitter creates a new BufferedEmitter. Safe for concurrent use.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores an event in the buffer.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.all = append(b.all, event)
	b.events[event.RequestID] = append(b.events[event.RequestID], event)
}

// GetHistory returns a copy of all events emitted for requestID, in order.
// An empty requestID returns every buffered event.
func (b *BufferedEmitter) GetHistory(requestID string) []Event {
	return b.GetHistoryWithFilter(requestID, HistoryFilter{})
}

// GetHistoryWithFilter returns the events for requestID that match filter.
// An empty requestID searches every buffered event. Never returns nil.
func (b *BufferedEmitter) GetHistoryWithFilter(requestID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.all
	if requestID != "" {
		events = b.events[requestID]
	}

	result := make([]Event, 0, len(events))
	for _, event := range events {
		if matchesFilter(event, filter) {
			result = append(result, event)
		}
	}
	return result
}

func matchesFilter(event Event, filter HistoryFilter) bool {
	if filter.Op != "" && event.Op != filter.Op {
		return false
	}
	if filter.Msg != "" && event.Msg != filter.Msg {
		return false
	}
	if filter.UserID != "" && event.UserID != filter.UserID {
		return false
	}
	return true
}

// Clear removes stored events.
//
// If requestID is non-empty, clears only events for that request. If requestID
// is empty, clears everything.
func (b *BufferedEmitter) Clear(requestID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if requestID == "" {
		b.all = nil
		b.events = make(map[string][]Event)
		return
	}

	delete(b.events, requestID)
	kept := b.all[:0]
	for _, event := range b.all {
		if event.RequestID != requestID {
			kept = append(kept, event)
		}
	}
	b.all = kept
}
