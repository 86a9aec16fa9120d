// Package sio drives the configuration window of an ITE Super I/O chip.
//
// The chip exposes its configuration registers through two fixed ports: the
// register index is written to the address port and the value is then read
// from or written to the data port. The window is only open after the unlock
// key has been written to the address port, and registers above 0x2F are
// banked by the logical device number (LDN).
package sio

import (
	"fmt"

	"github.com/sweeney/poe-sio/internal/portio"
)

// Fixed configuration ports.
const (
	AddressPort uint16 = 0x2E
	DataPort    uint16 = 0x2F
)

// Configuration registers.
const (
	RegConfigControl byte = 0x02
	RegLDN           byte = 0x07
	RegChipIDHigh    byte = 0x20
	RegChipIDLow     byte = 0x21
	RegBaseHigh      byte = 0x62
	RegBaseLow       byte = 0x63
)

// LDNGPIO is the logical device holding the GPIO configuration registers.
const LDNGPIO byte = 0x07

// lockValue written to RegConfigControl returns the chip to wait-for-key.
const lockValue byte = 0x02

// unlockKey opens the window when written to AddressPort. Order matters.
var unlockKey = [...]byte{0x87, 0x01, 0x55, 0x55}

// Session reads and writes configuration registers over a port bus.
// Not safe for concurrent use: the address/data protocol is stateful.
type Session struct {
	bus portio.Bus
}

// NewSession creates a Session on bus.
func NewSession(bus portio.Bus) *Session {
	return &Session{bus: bus}
}

// Enter writes the unlock key, opening the configuration window.
func (s *Session) Enter() (err error) {
	g, err := s.bus.Acquire(AddressPort, 1)
	if err != nil {
		return fmt.Errorf("sio enter: %w", err)
	}
	defer release(g, &err)

	for _, b := range unlockKey {
		if err := g.Out(AddressPort, b); err != nil {
			return fmt.Errorf("sio enter: %w", err)
		}
	}
	return nil
}

// Exit locks the configuration window again.
func (s *Session) Exit() (err error) {
	g, err := s.bus.Acquire(AddressPort, 2)
	if err != nil {
		return fmt.Errorf("sio exit: %w", err)
	}
	defer release(g, &err)

	if err := g.Out(AddressPort, RegConfigControl); err != nil {
		return fmt.Errorf("sio exit: %w", err)
	}
	if err := g.Out(DataPort, lockValue); err != nil {
		return fmt.Errorf("sio exit: %w", err)
	}
	return nil
}

// ReadRegister returns the value of configuration register reg. Port access is
// released after the data port has been read.
func (s *Session) ReadRegister(reg byte) (v byte, err error) {
	g, err := s.bus.Acquire(AddressPort, 2)
	if err != nil {
		return 0, fmt.Errorf("sio read 0x%02X: %w", reg, err)
	}
	defer release(g, &err)

	if err := g.Out(AddressPort, reg); err != nil {
		return 0, fmt.Errorf("sio read 0x%02X: %w", reg, err)
	}
	v, err = g.In(DataPort)
	if err != nil {
		return 0, fmt.Errorf("sio read 0x%02X: %w", reg, err)
	}
	return v, nil
}

// WriteRegister sets configuration register reg to value.
func (s *Session) WriteRegister(reg, value byte) (err error) {
	g, err := s.bus.Acquire(AddressPort, 2)
	if err != nil {
		return fmt.Errorf("sio write 0x%02X: %w", reg, err)
	}
	defer release(g, &err)

	if err := g.Out(AddressPort, reg); err != nil {
		return fmt.Errorf("sio write 0x%02X: %w", reg, err)
	}
	if err := g.Out(DataPort, value); err != nil {
		return fmt.Errorf("sio write 0x%02X: %w", reg, err)
	}
	return nil
}

// SelectLogicalDevice makes the registers of logical device ldn visible.
func (s *Session) SelectLogicalDevice(ldn byte) error {
	return s.WriteRegister(RegLDN, ldn)
}

// ChipID returns the 16-bit chip identifier.
func (s *Session) ChipID() (uint16, error) {
	return s.readPair(RegChipIDHigh, RegChipIDLow)
}

// BaseAddress returns the GPIO base address register of the selected logical
// device. The GPIO LDN must be selected first.
func (s *Session) BaseAddress() (uint16, error) {
	return s.readPair(RegBaseHigh, RegBaseLow)
}

// readPair composes two registers big-endian. Nothing is cached.
func (s *Session) readPair(high, low byte) (uint16, error) {
	h, err := s.ReadRegister(high)
	if err != nil {
		return 0, err
	}
	l, err := s.ReadRegister(low)
	if err != nil {
		return 0, err
	}
	return uint16(h)<<8 | uint16(l), nil
}

// release gives back g, reporting a release failure only if nothing else failed.
func release(g portio.Grant, err *error) {
	if rerr := g.Release(); rerr != nil && *err == nil {
		*err = fmt.Errorf("release ports: %w", rerr)
	}
}
