package status

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Ports         []PortJSON `json:"ports"`
	Ready         bool       `json:"ready"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Chip          ChipJSON   `json:"chip"`
	Config        ConfigJSON `json:"config"`
}

// PortJSON is one port's state.
type PortJSON struct {
	Port  int    `json:"port"`
	State string `json:"state"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Enabled  int `json:"enabled"`
	Disabled int `json:"disabled"`
}

// ChipJSON is the JSON representation of the controller.
type ChipJSON struct {
	Controller  string `json:"controller"`
	ChipID      string `json:"chip_id,omitempty"`
	BaseAddress string `json:"base_address,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	ConfigPath  string `json:"config_path"`
}

// SortedPorts returns the snapshot's ports in ascending order.
func (s Snapshot) SortedPorts() []PortJSON {
	out := make([]PortJSON, 0, len(s.Ports))
	for port, state := range s.Ports {
		st := string(state)
		if st == "" {
			st = "UNKNOWN"
		}
		out = append(out, PortJSON{Port: port, State: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ports:         snap.SortedPorts(),
		Ready:         snap.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Enabled:  snap.Counts.Enabled,
			Disabled: snap.Counts.Disabled,
		},
		Chip: ChipJSON{Controller: snap.Chip.Controller},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			ConfigPath:  snap.Config.ConfigPath,
		},
	}
	if snap.Chip.ChipID != 0 {
		inner.Chip.ChipID = fmt.Sprintf("0x%04X", snap.Chip.ChipID)
	}
	if snap.Chip.BaseAddress != 0 {
		inner.Chip.BaseAddress = fmt.Sprintf("0x%04X", snap.Chip.BaseAddress)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
