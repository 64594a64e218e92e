package dagforge

// EventKind classifies decoded stream frames.
type EventKind string

const (
	// EventDelta carries an incremental text fragment.
	EventDelta EventKind = "delta"
	// EventDone marks successful stream completion.
	EventDone EventKind = "done"
	// EventError carries a server-signaled failure.
	EventError EventKind = "error"
	// EventUnknown covers frames whose event name the SDK does not dispatch.
	EventUnknown EventKind = ""
)

// StreamEvent is one decoded frame from a chat stream.
type StreamEvent struct {
	Kind EventKind
	// Name is the raw event name from the frame, preserved for telemetry
	// even when the kind is unknown.
	Name string
	// Data is the raw frame payload.
	Data []byte
	// Delta holds the text fragment for delta events.
	Delta string
	// Message holds the server-provided text for error events.
	Message string
}

// EventName returns the wire event name for this event.
func (e StreamEvent) EventName() string {
	if e.Name != "" {
		return e.Name
	}
	return string(e.Kind)
}

func parseEventKind(name string) EventKind {
	switch name {
	case string(EventDelta):
		return EventDelta
	case string(EventDone):
		return EventDone
	case string(EventError):
		return EventError
	default:
		return EventUnknown
	}
}
