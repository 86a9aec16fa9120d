// Package dio provides digital I/O pin control on top of chip-specific
// controllers. Pin descriptors are supplied by the caller; a controller only
// knows how to configure and drive the bits they name.
package dio

import (
	"errors"
	"fmt"
)

// ErrUnsupportedMode is returned when a pin is asked for a direction its
// descriptor does not allow.
var ErrUnsupportedMode = errors.New("dio: mode not supported on pin")

// ErrInvalidModeTransition is returned when setting the state of a pin that is
// not configured as an output.
var ErrInvalidModeTransition = errors.New("dio: can't change state of pin in input mode")

// ErrPinOutOfRange is returned when a pin's offset falls outside a register
// bank the operation cannot skip.
var ErrPinOutOfRange = errors.New("dio: pin offset outside register bank")

// PinMode is the direction of a pin.
type PinMode int

const (
	ModeInput PinMode = iota
	ModeOutput
)

func (m PinMode) String() string {
	switch m {
	case ModeInput:
		return "input"
	case ModeOutput:
		return "output"
	default:
		return fmt.Sprintf("PinMode(%d)", int(m))
	}
}

// PinInfo describes where a pin lives and what it can do.
type PinInfo struct {
	// Offset selects the pin's byte within each register bank and within the
	// GPIO data bank.
	Offset uint8

	// Bitmask selects the pin's bit(s) within that byte.
	Bitmask uint8

	SupportsInput  bool
	SupportsOutput bool

	// Invert makes the logical state the complement of the physical bit.
	Invert bool
}

func (p PinInfo) String() string {
	return fmt.Sprintf("pin(offset=%d mask=0x%02X)", p.Offset, p.Bitmask)
}

// checkMode reports ErrUnsupportedMode if info cannot be put in mode.
func checkMode(info PinInfo, mode PinMode) error {
	if mode == ModeInput && !info.SupportsInput {
		return fmt.Errorf("%s: input: %w", info, ErrUnsupportedMode)
	}
	if mode == ModeOutput && !info.SupportsOutput {
		return fmt.Errorf("%s: output: %w", info, ErrUnsupportedMode)
	}
	return nil
}

// Controller configures and drives pins on one chip.
// Implementations are not safe for concurrent use; callers serialize.
//
// Errors wrap portio.ErrPermissionDenied when port access is refused,
// ErrUnsupportedMode and ErrInvalidModeTransition for direction misuse, and
// ErrPinOutOfRange when a pin's offset has no output enable register (for the
// IT8783, offsets above MaxOffsetIte8783). Check them with errors.Is.
type Controller interface {
	// InitPin puts the pin in its default configuration: plain GPIO function,
	// non-inverted hardware polarity, input if supported else output.
	InitPin(info PinInfo) error

	// PinMode returns the pin's current direction.
	PinMode(info PinInfo) (PinMode, error)

	// SetPinMode changes the pin's direction.
	SetPinMode(info PinInfo, mode PinMode) error

	// PinState returns the pin's logical level.
	PinState(info PinInfo) (bool, error)

	// SetPinState drives an output pin to a logical level.
	SetPinState(info PinInfo, state bool) error

	// Close releases the chip.
	Close() error
}

// PullUpper is implemented by controllers with per-pin pull-up control.
type PullUpper interface {
	SetPinPullUp(info PinInfo, enabled bool) error
}

// Identifier is implemented by controllers that identify a chip at construction.
type Identifier interface {
	// ChipID returns the identifier read from the chip.
	ChipID() uint16

	// BaseAddress returns the GPIO data bank address, 0 if no supported chip
	// was found.
	BaseAddress() uint16
}
