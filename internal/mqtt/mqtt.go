// Package mqtt provides MQTT publishing and port commands with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/poe-sio/internal/logic"
)

// Topic is the MQTT topic for port events.
const Topic = "poe/ports/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "poe/system"

// TopicCommand is the subscription filter for port commands. The payload is the
// desired state, e.g. "ENABLED" or "off", published to poe/ports/<n>/set.
const TopicCommand = "poe/ports/+/set"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a port event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandHandler is called for each valid port command received.
type CommandHandler func(cmd Command)

// Command asks for a port to be switched.
type Command struct {
	Port  int
	State string
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	PoE PortPayload `json:"poe"`
}

// PortPayload contains the port event details.
type PortPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Port      int    `json:"port"`
	State     string `json:"state"`
}

// FormatPayload creates the JSON payload for a port event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		PoE: PortPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Port:      event.Port,
			State:     string(event.State),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Event:  event.Event,
			Reason: event.Reason,
		},
	}
	if !event.Timestamp.IsZero() {
		payload.System.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(payload)
}

// ParseCommand extracts a port command from a message on TopicCommand.
func ParseCommand(topic string, payload []byte) (Command, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "poe" || parts[1] != "ports" || parts[3] != "set" {
		return Command{}, fmt.Errorf("unexpected command topic %q", topic)
	}
	port, err := strconv.Atoi(parts[2])
	if err != nil || port < 0 {
		return Command{}, fmt.Errorf("invalid port in topic %q", topic)
	}
	state := strings.TrimSpace(string(payload))
	if state == "" {
		return Command{}, fmt.Errorf("empty command for port %d", port)
	}
	return Command{Port: port, State: state}, nil
}

// CommandTopic returns the topic that commands for port are published on.
func CommandTopic(port int) string {
	return fmt.Sprintf("poe/ports/%d/set", port)
}
