package logic

import (
	"sort"
	"time"
)

// Detector tracks port states and detects debounced transitions.
type Detector struct {
	debounceDuration time.Duration
	ports            []int
	states           map[int]*PortState
	baselined        bool
	startTime        time.Time
	eventCounts      EventCounts
	lastHeartbeat    time.Time
}

// NewDetector creates a transition detector for the given ports.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(ports []int, debounceDuration time.Duration, startTime time.Time) *Detector {
	sorted := append([]int(nil), ports...)
	sort.Ints(sorted)

	states := make(map[int]*PortState, len(sorted))
	for _, p := range sorted {
		states[p] = &PortState{}
	}

	return &Detector{
		debounceDuration: debounceDuration,
		ports:            sorted,
		states:           states,
		startTime:        startTime,
		lastHeartbeat:    startTime,
	}
}

// Process takes a new input sample and returns any events that should be emitted.
// Events are only returned once the detector is baselined, in ascending port
// order. Ports missing from input.States are left as they were.
func (d *Detector) Process(input Input) []Event {
	var events []Event

	for _, port := range d.ports {
		on, ok := input.States[port]
		if !ok {
			continue
		}
		ps := d.states[port]
		if transition := d.processPort(ps, boolToState(on), input.Time); transition != nil && d.baselined {
			events = append(events, Event{
				Timestamp: input.Time,
				Type:      *transition,
				Port:      port,
				State:     ps.Stable,
			})
		}
	}

	// Baseline once every port read so far has settled. Ports that have never
	// been read do not hold it back; they baseline silently when they appear.
	if !d.baselined {
		settled := 0
		for _, port := range d.ports {
			ps := d.states[port]
			if ps.Baselined {
				settled++
			} else if ps.Pending != "" {
				return nil // No events until baseline established
			}
		}
		if settled > 0 {
			d.baselined = true
		}
		return nil
	}

	// Count events
	for _, e := range events {
		switch e.Type {
		case EventPortEnabled:
			d.eventCounts.Enabled++
		case EventPortDisabled:
			d.eventCounts.Disabled++
		}
	}

	return events
}

// processPort handles debounce logic for a single port.
// Returns the event type if a transition occurred, nil otherwise.
func (d *Detector) processPort(ps *PortState, newState State, now time.Time) *EventType {
	// First time seeing this port
	if !ps.Baselined {
		if ps.Pending == "" {
			// Start observing
			ps.Pending = newState
			ps.PendingSince = now
			if d.debounceDuration <= 0 {
				ps.Stable = newState
				ps.Baselined = true
				ps.Pending = ""
			}
			return nil
		}

		if ps.Pending != newState {
			// State changed during baseline, restart
			ps.Pending = newState
			ps.PendingSince = now
			return nil
		}

		// Check if debounce period has passed
		if now.Sub(ps.PendingSince) >= d.debounceDuration {
			ps.Stable = newState
			ps.Baselined = true
			ps.Pending = ""
		}
		return nil
	}

	// Already baselined - detect transitions
	if newState == ps.Stable {
		// No change from stable state, clear any pending
		ps.Pending = ""
		return nil
	}

	// State differs from stable
	if ps.Pending != newState {
		// New pending state
		ps.Pending = newState
		ps.PendingSince = now
		if d.debounceDuration > 0 {
			return nil
		}
	}

	// Same pending state, check debounce
	if now.Sub(ps.PendingSince) >= d.debounceDuration {
		ps.Stable = newState
		ps.Pending = ""
		return eventTypeFor(newState)
	}

	return nil
}

func boolToState(b bool) State {
	if b {
		return StateEnabled
	}
	return StateDisabled
}

func eventTypeFor(to State) *EventType {
	event := EventPortDisabled
	if to == StateEnabled {
		event = EventPortEnabled
	}
	return &event
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the current stable state of every port. Ports without a
// baseline are omitted.
func (d *Detector) CurrentState() map[int]State {
	out := make(map[int]State, len(d.ports))
	for _, port := range d.ports {
		if ps := d.states[port]; ps.Baselined {
			out[port] = ps.Stable
		}
	}
	return out
}

// EventCountsSnapshot returns the event counts since startup.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
