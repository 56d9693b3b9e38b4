package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Periodic health checkpoint
	EventTypeMatchStart
	EventTypeMatchReset
	EventTypeMatchFinish
	EventTypeDamage
	EventTypeHeal
	EventTypePickupRespawn
)

// EventVersion is bumped whenever a payload changes shape.
const EventVersion uint8 = 1

// Event is one line of the event log.
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic sequence
	TickNum   uint64          `json:"tickNum"`   // Match tick this occurred in
	Fighter   string          `json:"fighter,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeMatchStart:
		return "match_start"
	case EventTypeMatchReset:
		return "match_reset"
	case EventTypeMatchFinish:
		return "match_finish"
	case EventTypeDamage:
		return "damage"
	case EventTypeHeal:
		return "heal"
	case EventTypePickupRespawn:
		return "pickup_respawn"
	default:
		return "unknown"
	}
}

// MarshalText writes the event type by name so the log stays greppable.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Typed payloads for different event types

// TickPayload is a periodic health checkpoint
type TickPayload struct {
	P1Health int `json:"p1Health"`
	P2Health int `json:"p2Health"`
}

// MatchPayload records a lifecycle transition
type MatchPayload struct {
	State string `json:"state"`
}

// DamagePayload contains damage event details
type DamagePayload struct {
	Victim string `json:"victim"`
	Damage int    `json:"damage"`
	Health int    `json:"health"`
}

// HealPayload contains pickup heal details
type HealPayload struct {
	Fighter string `json:"fighter"`
	Amount  int    `json:"amount"`
	Health  int    `json:"health"`
}

// PickupPayload is the new pickup position
type PickupPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FinishPayload summarizes a finished match
type FinishPayload struct {
	Winner   string `json:"winner"`
	Ticks    uint64 `json:"ticks"`
	P1Health int    `json:"p1Health"`
	P2Health int    `json:"p2Health"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, fighter string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Fighter:   fighter,
		Payload:   EncodePayload(payload),
	}
}
