package identity

import (
	"strconv"

	"gigchain/core/types"
	"gigchain/crypto"
)

const (
	EventTypeRegistered = "identity.registered"
	EventTypeUpdated    = "identity.updated"
	EventTypeStatus     = "identity.status"
)

// Registered is emitted when a principal joins the directory.
type Registered struct {
	Address [20]byte
	Name    string
	Roles   Role
}

// EventType implements the Event interface.
func (Registered) EventType() string { return EventTypeRegistered }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e Registered) Event() *types.Event {
	return &types.Event{
		Type: EventTypeRegistered,
		Attributes: map[string]string{
			"address": crypto.FormatAddress(e.Address),
			"name":    e.Name,
			"roles":   e.Roles.String(),
		},
	}
}

// Updated is emitted when a principal edits its profile.
type Updated struct {
	Address    [20]byte
	Name       string
	ProfileRef string
}

// EventType implements the Event interface.
func (Updated) EventType() string { return EventTypeUpdated }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e Updated) Event() *types.Event {
	return &types.Event{
		Type: EventTypeUpdated,
		Attributes: map[string]string{
			"address":    crypto.FormatAddress(e.Address),
			"name":       e.Name,
			"profileRef": e.ProfileRef,
		},
	}
}

// StatusChanged is emitted when a principal is activated or deactivated.
type StatusChanged struct {
	Address [20]byte
	Active  bool
	By      [20]byte
}

// EventType implements the Event interface.
func (StatusChanged) EventType() string { return EventTypeStatus }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e StatusChanged) Event() *types.Event {
	return &types.Event{
		Type: EventTypeStatus,
		Attributes: map[string]string{
			"address": crypto.FormatAddress(e.Address),
			"active":  strconv.FormatBool(e.Active),
			"by":      crypto.FormatAddress(e.By),
		},
	}
}
