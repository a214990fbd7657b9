package emit

import "go.opentelemetry.io/otel/trace"

// Event represents an observability event emitted while the service handles a
// user operation.
//
// Events are emitted to an Emitter which can:
//   - Log through zap
//   - Send to OpenTelemetry
//   - Buffer in memory for tests and debugging
type Event struct {
	// RequestID correlates the event with the HTTP request that caused it.
	// Empty when the service is called directly rather than through the router.
	RequestID string

	// Op is the service operation: "create", "get", "update" or "delete".
	Op string

	// UserID is the record the operation targeted. Empty for a create that
	// failed validation.
	UserID string

	// Msg is the outcome, e.g. "user_created", "not_found", "invalid_input".
	Msg string

	// SpanContext is the trace the operation ran under. Invalid (zero) when the
	// request was not traced.
	SpanContext trace.SpanContext

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": Operation duration in milliseconds
	//   - "error": Error details
	//   - "count": Collection size after the operation
	Meta map[string]interface{}
}

// Event messages emitted by the user service.
const (
	MsgUserCreated  = "user_created"
	MsgUserFetched  = "user_fetched"
	MsgUserUpdated  = "user_updated"
	MsgUserDeleted  = "user_deleted"
	MsgInvalidInput = "invalid_input"
	MsgNotFound     = "not_found"
	MsgStoreError   = "store_error"
)
