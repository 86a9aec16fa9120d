// Package poe maps PoE port numbers onto digital I/O pins and switches port
// power through a dio.Controller.
package poe

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sweeney/poe-sio/internal/config"
	"github.com/sweeney/poe-sio/internal/dio"
)

// State is the power state of a port.
type State string

const (
	StateEnabled  State = "ENABLED"
	StateDisabled State = "DISABLED"
	StateError    State = "ERROR"
)

// ParseState accepts ENABLED/DISABLED and the on/off/1/0 aliases used on the
// command line and MQTT, case-insensitively.
func ParseState(s string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ENABLED", "ENABLE", "ON", "1", "TRUE":
		return StateEnabled, nil
	case "DISABLED", "DISABLE", "OFF", "0", "FALSE":
		return StateDisabled, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
}

// ErrUnknownPort is returned for port numbers not in the port map.
var ErrUnknownPort = errors.New("poe: unknown port")

// ErrInvalidState is returned when a port is set to anything but enabled or
// disabled.
var ErrInvalidState = errors.New("poe: invalid state")

// Manager switches PoE ports. All controller access is serialized, so a Manager
// may be shared by the HTTP server, MQTT command handler and poll loop.
type Manager struct {
	mu    sync.Mutex
	ctrl  dio.Controller
	pins  map[int]dio.PinInfo
	order []int
	log   *logrus.Logger
}

// New initialises every configured pin on ctrl. The Manager takes ownership of
// ctrl and closes it in Close.
//
// Pins that can be inputs but are already driven as outputs keep their
// direction, so restarting over a live port does not drop its power.
func New(ctrl dio.Controller, ports []config.Port, log *logrus.Logger) (*Manager, error) {
	m, err := newManager(ctrl, ports, log)
	if err != nil {
		return nil, err
	}

	for _, p := range ports {
		if err := m.initPort(p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Attach manages ports on ctrl without initialising any pin. Reads never touch
// the configuration registers; a port can only be switched if its pin is
// already an output.
func Attach(ctrl dio.Controller, ports []config.Port, log *logrus.Logger) (*Manager, error) {
	return newManager(ctrl, ports, log)
}

func newManager(ctrl dio.Controller, ports []config.Port, log *logrus.Logger) (*Manager, error) {
	if log == nil {
		log = logrus.New()
	}
	m := &Manager{
		ctrl: ctrl,
		pins: make(map[int]dio.PinInfo, len(ports)),
		log:  log,
	}

	if id, ok := ctrl.(dio.Identifier); ok {
		if id.BaseAddress() == 0 {
			return nil, fmt.Errorf("poe: no supported chip found (chip id 0x%04X)", id.ChipID())
		}
		log.WithFields(logrus.Fields{
			"chip_id": fmt.Sprintf("0x%04X", id.ChipID()),
			"base":    fmt.Sprintf("0x%04X", id.BaseAddress()),
		}).Info("gpio controller found")
	}

	for _, p := range ports {
		m.pins[p.Port] = p.PinInfo()
		m.order = append(m.order, p.Port)
	}
	sort.Ints(m.order)
	return m, nil
}

func (m *Manager) initPort(p config.Port) error {
	info := p.PinInfo()

	// Ports are power switches: drive them as outputs when possible.
	initInfo := info
	if info.SupportsInput && info.SupportsOutput {
		if mode, err := m.ctrl.PinMode(info); err == nil && mode == dio.ModeOutput {
			initInfo.SupportsInput = false
		}
	}
	if err := m.ctrl.InitPin(initInfo); err != nil {
		return fmt.Errorf("init port %d: %w", p.Port, err)
	}

	if p.PullUp {
		pu, ok := m.ctrl.(dio.PullUpper)
		if !ok {
			m.log.WithField("port", p.Port).Warn("controller has no pull-up control, ignoring pullup")
		} else if err := pu.SetPinPullUp(info, true); err != nil {
			return fmt.Errorf("pull-up port %d: %w", p.Port, err)
		}
	}

	if initInfo.SupportsInput && info.SupportsOutput {
		if err := m.ctrl.SetPinMode(info, dio.ModeOutput); err != nil {
			return fmt.Errorf("init port %d: %w", p.Port, err)
		}
	}
	m.log.WithFields(logrus.Fields{"port": p.Port, "pin": info.String()}).Debug("port initialised")
	return nil
}

// Ports returns the configured port numbers in ascending order.
func (m *Manager) Ports() []int {
	out := make([]int, len(m.order))
	copy(out, m.order)
	return out
}

// PortState reads the state of port. On failure the state is StateError.
func (m *Manager) PortState(port int) (State, error) {
	info, ok := m.pins[port]
	if !ok {
		return StateError, fmt.Errorf("%w: %d", ErrUnknownPort, port)
	}

	m.mu.Lock()
	on, err := m.ctrl.PinState(info)
	m.mu.Unlock()
	if err != nil {
		return StateError, fmt.Errorf("port %d: %w", port, err)
	}
	if on {
		return StateEnabled, nil
	}
	return StateDisabled, nil
}

// SetPortState switches port on or off.
func (m *Manager) SetPortState(port int, state State) error {
	info, ok := m.pins[port]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPort, port)
	}
	if state != StateEnabled && state != StateDisabled {
		return fmt.Errorf("%w: %q", ErrInvalidState, state)
	}

	m.mu.Lock()
	err := m.ctrl.SetPinState(info, state == StateEnabled)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("port %d: %w", port, err)
	}

	m.log.WithFields(logrus.Fields{"port": port, "state": state}).Info("port state set")
	return nil
}

// States reads every port. Ports that fail to read are reported as StateError
// and logged.
func (m *Manager) States() map[int]State {
	out := make(map[int]State, len(m.order))
	for _, port := range m.order {
		s, err := m.PortState(port)
		if err != nil {
			m.log.WithField("port", port).Warnf("read port state: %v", err)
		}
		out[port] = s
	}
	return out
}

// Close releases the controller.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctrl.Close()
}
