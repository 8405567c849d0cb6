package events

import (
	"context"

	"gigchain/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload is implemented by events that can render the generic representation
// consumed by subscribers.
type Payload interface {
	Event() *types.Event
}

// Record is a committed event together with its position in the ordered log.
type Record struct {
	Sequence uint64
	Event    types.Event
}

// Sink receives committed event records in log order. Records handed to a
// sink are never retracted.
type Sink interface {
	Publish(ctx context.Context, records []Record) error
}

// ToTypesEvent converts an emitted event into its generic representation.
// Events that do not carry a payload are rendered with empty attributes.
func ToTypesEvent(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if provider, ok := evt.(Payload); ok {
		return provider.Event()
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}
