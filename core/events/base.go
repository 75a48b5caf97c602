package events

import "time"

// Kind is the namespaced event discriminator, e.g. "user_input.speech_started".
type Kind string

// Event is implemented by every session event.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the kind and emission time shared by all events. Embed it
// and construct through NewBase so the timestamp is never zero.
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
