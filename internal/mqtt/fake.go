package mqtt

import (
	"github.com/sweeney/poe-sio/internal/logic"
)

// FakePublisher records published events and lets tests inject commands.
type FakePublisher struct {
	Events         []logic.Event
	Payloads       [][]byte
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError and PublishSystemError, if set, are returned instead of
	// recording.
	PublishError       error
	PublishSystemError error

	// OnCommand receives commands passed to Deliver.
	OnCommand CommandHandler

	Closed    bool
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the port event.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Deliver simulates a message arriving on a command topic. Malformed
// messages are dropped and their parse error returned.
func (f *FakePublisher) Deliver(topic string, payload []byte) error {
	cmd, err := ParseCommand(topic, payload)
	if err != nil {
		return err
	}
	if f.OnCommand != nil {
		f.OnCommand(cmd)
	}
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports the Connected knob.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events and knobs.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
