package emit

import (
	"time"

	"go.uber.org/zap"
)

// LogEmitter implements Emitter by writing each event as a structured zap log
// entry.
//
// Output format (JSON or console) is decided by how the logger was built. Events
// carrying an "error" meta key are logged at Warn level, everything else at Info.
//
// Example JSON output:
//
//	{"level":"info","msg":"user_created","request_id":"9b1d...","op":"create","user_id":"3f2a...","duration_ms":0}
//
// Usage:
//
//	logger, _ := zap.NewProduction()
//	emitter := emit.NewLogEmitter(logger)
type LogEmitter struct {
	logger *zap.Logger
}

// NewLogEmitter creates a LogEmitter. A nil logger is replaced with zap.NewNop.
func NewLogEmitter(logger *zap.Logger) *LogEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEmitter{logger: logger}
}

// Emit writes the event through the wrapped logger.
func (l *LogEmitter) Emit(event Event) {
	fields := make([]zap.Field, 0, 4+len(event.Meta))
	fields = append(fields, zap.String("op", event.Op))
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	fields = append(fields, metaFields(event.Meta)...)

	if _, ok := event.Meta["error"]; ok {
		l.logger.Warn(event.Msg, fields...)
		return
	}
	l.logger.Info(event.Msg, fields...)
}

func metaFields(meta map[string]interface{}) []zap.Field {
	if len(meta) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(meta))
	for key, value := range meta {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case int:
			fields = append(fields, zap.Int(key, v))
		case int64:
			fields = append(fields, zap.Int64(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		case time.Duration:
			fields = append(fields, zap.Int64(key, v.Milliseconds()))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}
	return fields
}
