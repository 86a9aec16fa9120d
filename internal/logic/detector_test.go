package logic

import (
	"testing"
	"time"
)

var testPorts = []int{2, 1}

func sample(p1, p2 bool, at time.Time) Input {
	return Input{States: map[int]bool{1: p1, 2: p2}, Time: at}
}

// setupBaselinedDetector returns a detector with 250ms debounce, baselined on
// the given states at 12:00:00.250.
func setupBaselinedDetector(t *testing.T, p1, p2 bool) *Detector {
	t.Helper()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(testPorts, 250*time.Millisecond, start)
	d.Process(sample(p1, p2, start))
	d.Process(sample(p1, p2, start.Add(250*time.Millisecond)))
	if !d.IsBaselined() {
		t.Fatal("setup: detector should be baselined")
	}
	return d
}

func TestNewDetector(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(testPorts, 250*time.Millisecond, startTime)
	if d == nil {
		t.Fatal("NewDetector returned nil")
	}
	if d.debounceDuration != 250*time.Millisecond {
		t.Errorf("expected debounce duration 250ms, got %v", d.debounceDuration)
	}
	if d.baselined {
		t.Error("new detector should not be baselined")
	}
	if d.ports[0] != 1 || d.ports[1] != 2 {
		t.Errorf("expected sorted ports [1 2], got %v", d.ports)
	}
	if !d.lastHeartbeat.Equal(startTime) {
		t.Errorf("expected lastHeartbeat %v, got %v", startTime, d.lastHeartbeat)
	}
}

func TestBaselineEstablishment(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(testPorts, 250*time.Millisecond, now)

	// First sample - starts observation
	events := d.Process(sample(true, false, now))
	if len(events) != 0 {
		t.Errorf("expected no events during baseline, got %d", len(events))
	}
	if d.IsBaselined() {
		t.Error("should not be baselined after first sample")
	}

	// Before debounce period
	d.Process(sample(true, false, now.Add(200*time.Millisecond)))
	if d.IsBaselined() {
		t.Error("should not be baselined before debounce period")
	}

	// After debounce period - baseline established
	events = d.Process(sample(true, false, now.Add(250*time.Millisecond)))
	if len(events) != 0 {
		t.Errorf("expected no events at baseline establishment, got %d", len(events))
	}
	if !d.IsBaselined() {
		t.Error("should be baselined after debounce period")
	}

	state := d.CurrentState()
	if state[1] != StateEnabled {
		t.Errorf("expected port 1 ENABLED, got %s", state[1])
	}
	if state[2] != StateDisabled {
		t.Errorf("expected port 2 DISABLED, got %s", state[2])
	}
}

func TestBaselineResetOnChange(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(testPorts, 250*time.Millisecond, now)

	d.Process(sample(true, false, now))
	// Change state before debounce completes
	d.Process(sample(false, false, now.Add(100*time.Millisecond)))

	// Port 2 is baselined, port 1 restarted its timer
	d.Process(sample(false, false, now.Add(250*time.Millisecond)))
	if d.IsBaselined() {
		t.Error("should not be baselined while port 1 is still settling")
	}

	d.Process(sample(false, false, now.Add(350*time.Millisecond)))
	if !d.IsBaselined() {
		t.Error("should be baselined after debounce from state change")
	}
	if s := d.CurrentState()[1]; s != StateDisabled {
		t.Errorf("expected port 1 DISABLED, got %s", s)
	}
}

func TestPendingPortDelaysBaseline(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(testPorts, 250*time.Millisecond, now)

	d.Process(sample(true, false, now))
	d.Process(Input{States: map[int]bool{1: true}, Time: now.Add(300 * time.Millisecond)})
	if d.IsBaselined() {
		t.Error("should not be baselined while port 2 is still debouncing")
	}

	d.Process(sample(true, false, now.Add(600*time.Millisecond)))
	if !d.IsBaselined() {
		t.Error("should be baselined once every read port has settled")
	}
}

func TestUnreadablePortDoesNotBlockBaseline(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(testPorts, 0, now)

	// Port 2 never reads; port 1 toggles every sample.
	var events []Event
	for i := 0; i < 100; i++ {
		at := now.Add(time.Duration(i) * time.Second)
		events = append(events, d.Process(Input{States: map[int]bool{1: i%2 == 0}, Time: at})...)
	}

	if !d.IsBaselined() {
		t.Fatal("should baseline on the ports that can be read")
	}
	if _, ok := d.CurrentState()[2]; ok {
		t.Error("port 2 should have no current state")
	}
	counts := d.EventCountsSnapshot()
	if counts.Enabled == 0 || counts.Disabled == 0 {
		t.Errorf("expected events for port 1, got %+v", counts)
	}
	for _, e := range events {
		if e.Port != 1 {
			t.Errorf("unexpected event for port %d", e.Port)
		}
	}
	if hb := d.CheckHeartbeat(now.Add(time.Hour), time.Minute); hb == nil {
		t.Error("expected heartbeat once baselined")
	}
}

func TestLatePortBaselinesSilently(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(testPorts, 0, now)

	d.Process(Input{States: map[int]bool{1: true}, Time: now})
	if !d.IsBaselined() {
		t.Fatal("expected baseline on port 1")
	}

	// Port 2 recovers: its first reading is a baseline, not an event.
	if events := d.Process(sample(true, true, now.Add(time.Second))); len(events) != 0 {
		t.Errorf("expected no events when port 2 first reads, got %+v", events)
	}
	if s := d.CurrentState()[2]; s != StateEnabled {
		t.Errorf("port 2: got %q, want ENABLED", s)
	}

	events := d.Process(sample(true, false, now.Add(2*time.Second)))
	if len(events) != 1 || events[0].Port != 2 || events[0].Type != EventPortDisabled {
		t.Errorf("expected PORT_DISABLED for port 2, got %+v", events)
	}
}

func TestNoEventsForStableState(t *testing.T) {
	d := setupBaselinedDetector(t, true, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		events := d.Process(sample(true, false, now.Add(time.Duration(i)*100*time.Millisecond)))
		if len(events) != 0 {
			t.Errorf("iteration %d: expected no events for stable state, got %d", i, len(events))
		}
	}
}

func TestSingleTransition(t *testing.T) {
	d := setupBaselinedDetector(t, true, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	events := d.Process(sample(false, false, now))
	if len(events) != 0 {
		t.Fatalf("expected no event before debounce, got %d", len(events))
	}

	events = d.Process(sample(false, false, now.Add(250*time.Millisecond)))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventPortDisabled {
		t.Errorf("expected PORT_DISABLED, got %s", e.Type)
	}
	if e.Port != 1 {
		t.Errorf("expected port 1, got %d", e.Port)
	}
	if e.State != StateDisabled {
		t.Errorf("expected DISABLED, got %s", e.State)
	}
	if !e.Timestamp.Equal(now.Add(250 * time.Millisecond)) {
		t.Errorf("unexpected timestamp %v", e.Timestamp)
	}
}

func TestGlitchSuppressed(t *testing.T) {
	d := setupBaselinedDetector(t, false, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	d.Process(sample(true, false, now))
	events := d.Process(sample(false, false, now.Add(100*time.Millisecond)))
	if len(events) != 0 {
		t.Errorf("expected glitch to be ignored, got %d events", len(events))
	}
	events = d.Process(sample(false, false, now.Add(500*time.Millisecond)))
	if len(events) != 0 {
		t.Errorf("expected no events after glitch, got %d", len(events))
	}
}

func TestSimultaneousTransitionsOrdered(t *testing.T) {
	d := setupBaselinedDetector(t, false, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	d.Process(sample(true, true, now))
	events := d.Process(sample(true, true, now.Add(300*time.Millisecond)))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Port != 1 || events[1].Port != 2 {
		t.Errorf("expected port order 1, 2; got %d, %d", events[0].Port, events[1].Port)
	}
	for _, e := range events {
		if e.Type != EventPortEnabled {
			t.Errorf("port %d: expected PORT_ENABLED, got %s", e.Port, e.Type)
		}
	}
}

func TestZeroDebounce(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(testPorts, 0, now)

	d.Process(sample(false, false, now))
	if !d.IsBaselined() {
		t.Fatal("zero debounce should baseline on the first sample")
	}

	events := d.Process(sample(true, false, now.Add(100*time.Millisecond)))
	if len(events) != 1 || events[0].Type != EventPortEnabled {
		t.Fatalf("expected immediate PORT_ENABLED, got %v", events)
	}
}

func TestMissingReadingKeepsState(t *testing.T) {
	d := setupBaselinedDetector(t, true, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	events := d.Process(Input{States: map[int]bool{2: false}, Time: now})
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
	if s := d.CurrentState()[1]; s != StateEnabled {
		t.Errorf("port 1 should keep ENABLED, got %s", s)
	}
}

func TestEventCounts(t *testing.T) {
	d := setupBaselinedDetector(t, false, false)
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	d.Process(sample(true, false, now))
	d.Process(sample(true, false, now.Add(300*time.Millisecond)))
	d.Process(sample(false, true, now.Add(time.Second)))
	d.Process(sample(false, true, now.Add(1300*time.Millisecond)))

	counts := d.EventCountsSnapshot()
	if counts.Enabled != 2 {
		t.Errorf("Enabled: got %d, want 2", counts.Enabled)
	}
	if counts.Disabled != 1 {
		t.Errorf("Disabled: got %d, want 1", counts.Disabled)
	}
}

func TestCheckHeartbeat(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := setupBaselinedDetector(t, true, false)

	if hb := d.CheckHeartbeat(start.Add(10*time.Minute), 15*time.Minute); hb != nil {
		t.Error("expected no heartbeat before interval")
	}

	hb := d.CheckHeartbeat(start.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", hb.Uptime)
	}

	if hb := d.CheckHeartbeat(start.Add(20*time.Minute), 15*time.Minute); hb != nil {
		t.Error("expected no heartbeat 5m after the last one")
	}
	if hb := d.CheckHeartbeat(start.Add(30*time.Minute), 15*time.Minute); hb == nil {
		t.Error("expected second heartbeat")
	}
}

func TestCheckHeartbeatDisabled(t *testing.T) {
	d := setupBaselinedDetector(t, true, false)
	if hb := d.CheckHeartbeat(time.Now().Add(time.Hour), 0); hb != nil {
		t.Error("expected nil heartbeat when interval is 0")
	}
}

func TestCheckHeartbeatBeforeBaseline(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(testPorts, 250*time.Millisecond, start)
	if hb := d.CheckHeartbeat(start.Add(time.Hour), time.Minute); hb != nil {
		t.Error("expected nil heartbeat before baseline")
	}
}
