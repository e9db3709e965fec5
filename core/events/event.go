package events

// Event is the canonical payload emitted by native engines. Attribute values
// are pre-rendered strings so downstream consumers never need to understand
// engine-internal types.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Emitter receives engine events. Implementations must not retain the
// attribute map beyond the call.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

// Emit implements Emitter.
func (NoopEmitter) Emit(Event) {}
