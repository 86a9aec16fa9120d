// Package logic contains pure business logic for PoE port state tracking.
// This package has NO external dependencies (no port I/O, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the debounced power state of a port.
type State string

const (
	StateEnabled  State = "ENABLED"
	StateDisabled State = "DISABLED"
)

// EventType represents a state transition event.
type EventType string

const (
	EventPortEnabled  EventType = "PORT_ENABLED"
	EventPortDisabled EventType = "PORT_DISABLED"
)

// Event represents a state transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Port      int
	State     State
}

// PortState tracks debounce state for a single port.
type PortState struct {
	// Current stable (debounced) state
	Stable State
	// Pending state during debounce
	Pending State
	// Time when pending state was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Input represents a single sample of port states.
// Ports missing from States (e.g. read errors) are left as they were.
type Input struct {
	States map[int]bool // true = enabled
	Time   time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Enabled  int
	Disabled int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
