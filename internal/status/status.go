// Package status provides a thread-safe status tracker for the PoE daemon.
// It is read by the HTTP handlers and used to build MQTT status events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/poe-sio/internal/logic"
)

// ChipInfo describes the GPIO controller the daemon is driving.
type ChipInfo struct {
	Controller  string
	ChipID      uint16
	BaseAddress uint16
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	ConfigPath  string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Ports         map[int]logic.State
	Baselined     bool
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Chip          ChipInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets port states, baseline status, and event counts.
// Called from runLoop on every tick. ports is copied.
func (t *Tracker) Update(ports map[int]logic.State, baselined bool, counts logic.EventCounts) {
	cp := make(map[int]logic.State, len(ports))
	for k, v := range ports {
		cp[k] = v
	}

	t.mu.Lock()
	t.snap.Ports = cp
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetChip records the controller in use.
func (t *Tracker) SetChip(info ChipInfo) {
	t.mu.Lock()
	t.snap.Chip = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	// Update replaces the map rather than mutating it, so sharing is safe.
	s.Now = time.Now()
	return s
}
