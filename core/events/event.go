package events

import "pegvault/core/types"

// Event represents a structured state change emitted by the engine.
type Event interface {
	EventType() string
}

// Typed is implemented by events that render to the flat wire form.
type Typed interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. journals, metrics).
type Emitter interface {
	Emit(Event)
}

// Recorder buffers emitted events in order.
type Recorder struct {
	events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(e Event) {
	if r == nil || e == nil {
		return
	}
	r.events = append(r.events, e)
}

// Events returns the buffered events.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Flatten renders typed events to their wire form, skipping events without one.
func Flatten(list []Event) []types.Event {
	out := make([]types.Event, 0, len(list))
	for _, e := range list {
		typed, ok := e.(Typed)
		if !ok {
			continue
		}
		if rendered := typed.Event(); rendered != nil {
			out = append(out, *rendered)
		}
	}
	return out
}
