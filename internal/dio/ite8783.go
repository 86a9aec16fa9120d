package dio

import (
	"errors"
	"fmt"

	"github.com/sweeney/poe-sio/internal/portio"
	"github.com/sweeney/poe-sio/internal/sio"
)

// ChipIDIte8783 is the identifier reported by the IT8783 family.
const ChipIDIte8783 uint16 = 0x8783

// GPIO configuration register banks (inclusive ranges, in the GPIO LDN).
const (
	polarityBank     = 0xB0
	polarityMax      = 0xB4
	pullUpBank       = 0xB8
	pullUpMax        = 0xBC
	simpleIOBank     = 0xC0
	simpleIOMax      = 0xC4
	outputEnableBank = 0xC8
	outputEnableMax  = 0xCD
)

// MaxOffsetIte8783 is the highest pin offset with an output enable register.
const MaxOffsetIte8783 = outputEnableMax - outputEnableBank

// Ite8783 controls the GPIO pins of an ITE IT8783 Super I/O chip.
type Ite8783 struct {
	bus     portio.Bus
	session *sio.Session
	chipID  uint16
	base    uint16
}

var (
	_ Controller = (*Ite8783)(nil)
	_ PullUpper  = (*Ite8783)(nil)
	_ Identifier = (*Ite8783)(nil)
)

// NewIte8783 identifies the chip on bus. If the chip ID does not match, the
// controller is still returned with a zero BaseAddress; callers must check
// ChipFound before trusting pin state operations.
//
// The configuration window is always locked again before NewIte8783 returns,
// including when probing fails.
func NewIte8783(bus portio.Bus) (*Ite8783, error) {
	c := &Ite8783{
		bus:     bus,
		session: sio.NewSession(bus),
	}

	if err := c.identify(); err != nil {
		if xerr := c.session.Exit(); xerr != nil {
			return nil, errors.Join(err, xerr)
		}
		return nil, err
	}
	if err := c.session.Exit(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Ite8783) identify() error {
	if err := c.session.Enter(); err != nil {
		return err
	}
	if err := c.session.SelectLogicalDevice(sio.LDNGPIO); err != nil {
		return err
	}

	id, err := c.session.ChipID()
	if err != nil {
		return fmt.Errorf("read chip id: %w", err)
	}
	c.chipID = id
	if id != ChipIDIte8783 {
		return nil
	}

	base, err := c.session.BaseAddress()
	if err != nil {
		return fmt.Errorf("read gpio base address: %w", err)
	}
	c.base = base
	return nil
}

// ChipID returns the identifier read during construction.
func (c *Ite8783) ChipID() uint16 { return c.chipID }

// BaseAddress returns the GPIO data bank address, 0 if the chip did not match.
func (c *Ite8783) BaseAddress() uint16 { return c.base }

// ChipFound reports whether construction found an IT8783.
func (c *Ite8783) ChipFound() bool { return c.base != 0 }

// Close locks the configuration window.
func (c *Ite8783) Close() error {
	return c.session.Exit()
}

// configure runs fn with the configuration window open and the GPIO logical
// device selected.
func (c *Ite8783) configure(fn func() error) error {
	if err := c.session.Enter(); err != nil {
		return err
	}

	err := c.session.SelectLogicalDevice(sio.LDNGPIO)
	if err == nil {
		err = fn()
	}

	if xerr := c.session.Exit(); xerr != nil {
		return errors.Join(err, xerr)
	}
	return err
}

// InitPin clears the pin's polarity bits and selects simple I/O, skipping
// either bank when the pin falls outside it, then sets the default direction.
// Logical inversion is left to PinInfo.Invert.
func (c *Ite8783) InitPin(info PinInfo) error {
	return c.configure(func() error {
		if reg, ok := bankRegister(polarityBank, polarityMax, info.Offset); ok {
			if err := c.clearBits(reg, info.Bitmask); err != nil {
				return fmt.Errorf("%s: polarity: %w", info, err)
			}
		}

		if reg, ok := bankRegister(simpleIOBank, simpleIOMax, info.Offset); ok {
			if err := c.setBits(reg, info.Bitmask); err != nil {
				return fmt.Errorf("%s: simple i/o: %w", info, err)
			}
		}

		mode := ModeOutput
		if info.SupportsInput {
			mode = ModeInput
		}
		return c.setPinMode(info, mode)
	})
}

// SetPinPullUp enables or disables the pin's internal pull-up. Pins outside the
// pull-up bank are left alone.
func (c *Ite8783) SetPinPullUp(info PinInfo, enabled bool) error {
	reg, ok := bankRegister(pullUpBank, pullUpMax, info.Offset)
	if !ok {
		return nil
	}
	return c.configure(func() error {
		if enabled {
			return c.setBits(reg, info.Bitmask)
		}
		return c.clearBits(reg, info.Bitmask)
	})
}

// PinMode reports output only if every bit of the pin's mask is enabled.
func (c *Ite8783) PinMode(info PinInfo) (PinMode, error) {
	var mode PinMode
	err := c.configure(func() error {
		var err error
		mode, err = c.pinMode(info)
		return err
	})
	return mode, err
}

func (c *Ite8783) pinMode(info PinInfo) (PinMode, error) {
	reg, ok := bankRegister(outputEnableBank, outputEnableMax, info.Offset)
	if !ok {
		return ModeInput, fmt.Errorf("%s: output enable: %w", info, ErrPinOutOfRange)
	}
	v, err := c.session.ReadRegister(reg)
	if err != nil {
		return ModeInput, err
	}
	if v&info.Bitmask == info.Bitmask {
		return ModeOutput, nil
	}
	return ModeInput, nil
}

// SetPinMode updates only the pin's bits in its output enable register.
func (c *Ite8783) SetPinMode(info PinInfo, mode PinMode) error {
	if err := checkMode(info, mode); err != nil {
		return err
	}
	return c.configure(func() error {
		return c.setPinMode(info, mode)
	})
}

func (c *Ite8783) setPinMode(info PinInfo, mode PinMode) error {
	if err := checkMode(info, mode); err != nil {
		return err
	}
	reg, ok := bankRegister(outputEnableBank, outputEnableMax, info.Offset)
	if !ok {
		return fmt.Errorf("%s: output enable: %w", info, ErrPinOutOfRange)
	}
	if mode == ModeOutput {
		return c.setBits(reg, info.Bitmask)
	}
	return c.clearBits(reg, info.Bitmask)
}

// PinState reads the pin's data register directly from the GPIO bank.
func (c *Ite8783) PinState(info PinInfo) (state bool, err error) {
	port := c.base + uint16(info.Offset)
	g, err := c.bus.Acquire(port, 1)
	if err != nil {
		return false, fmt.Errorf("%s: read state: %w", info, err)
	}
	defer release(g, &err)

	v, err := g.In(port)
	if err != nil {
		return false, fmt.Errorf("%s: read state: %w", info, err)
	}

	state = v&info.Bitmask == info.Bitmask
	if info.Invert {
		state = !state
	}
	return state, nil
}

// SetPinState drives an output pin, leaving the other bits of its data
// register untouched.
func (c *Ite8783) SetPinState(info PinInfo, state bool) (err error) {
	if !info.SupportsOutput {
		return fmt.Errorf("%s: output: %w", info, ErrUnsupportedMode)
	}

	mode, err := c.PinMode(info)
	if err != nil {
		return err
	}
	if mode != ModeOutput {
		return fmt.Errorf("%s: %w", info, ErrInvalidModeTransition)
	}

	if info.Invert {
		state = !state
	}

	port := c.base + uint16(info.Offset)
	g, err := c.bus.Acquire(port, 1)
	if err != nil {
		return fmt.Errorf("%s: write state: %w", info, err)
	}
	defer release(g, &err)

	v, err := g.In(port)
	if err != nil {
		return fmt.Errorf("%s: write state: %w", info, err)
	}
	if state {
		v |= info.Bitmask
	} else {
		v &^= info.Bitmask
	}
	if err := g.Out(port, v); err != nil {
		return fmt.Errorf("%s: write state: %w", info, err)
	}
	return nil
}

func (c *Ite8783) setBits(reg, mask byte) error {
	v, err := c.session.ReadRegister(reg)
	if err != nil {
		return err
	}
	return c.session.WriteRegister(reg, v|mask)
}

func (c *Ite8783) clearBits(reg, mask byte) error {
	v, err := c.session.ReadRegister(reg)
	if err != nil {
		return err
	}
	return c.session.WriteRegister(reg, v&^mask)
}

// bankRegister returns bank+offset if it does not run past last.
func bankRegister(bank, last byte, offset uint8) (byte, bool) {
	reg := uint16(bank) + uint16(offset)
	if reg > uint16(last) {
		return 0, false
	}
	return byte(reg), true
}

func release(g portio.Grant, err *error) {
	if rerr := g.Release(); rerr != nil && *err == nil {
		*err = fmt.Errorf("release ports: %w", rerr)
	}
}
