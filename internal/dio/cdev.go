//go:build linux

package dio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// errNotRequested is returned for lines InitPin has not been called on.
var errNotRequested = errors.New("dio: line not initialised")

// Cdev controls pins exposed by a Linux GPIO character device. PinInfo.Offset
// is the line offset on the chip and Bitmask is ignored.
type Cdev struct {
	chip  *gpiocdev.Chip
	lines map[uint8]*gpiocdev.Line
	modes map[uint8]PinMode
}

var _ Controller = (*Cdev)(nil)

// NewCdev opens the named gpiochip, e.g. "gpiochip0".
func NewCdev(name string) (*Cdev, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer("poe-sio"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Cdev{
		chip:  chip,
		lines: make(map[uint8]*gpiocdev.Line),
		modes: make(map[uint8]PinMode),
	}, nil
}

// InitPin requests the line as an input if supported, else as an output
// driven to its inactive level.
func (c *Cdev) InitPin(info PinInfo) error {
	mode := ModeOutput
	if info.SupportsInput {
		mode = ModeInput
	}
	if err := checkMode(info, mode); err != nil {
		return err
	}

	if _, ok := c.lines[info.Offset]; ok {
		return c.SetPinMode(info, mode)
	}

	var opt gpiocdev.LineReqOption = gpiocdev.AsInput
	if mode == ModeOutput {
		opt = gpiocdev.AsOutput(c.physical(info, false))
	}
	line, err := c.chip.RequestLine(int(info.Offset), opt)
	if err != nil {
		return fmt.Errorf("request line %d: %w", info.Offset, err)
	}
	c.lines[info.Offset] = line
	c.modes[info.Offset] = mode
	return nil
}

// PinMode returns the direction the line was last configured with.
func (c *Cdev) PinMode(info PinInfo) (PinMode, error) {
	if _, ok := c.lines[info.Offset]; !ok {
		return ModeInput, fmt.Errorf("line %d: %w", info.Offset, errNotRequested)
	}
	return c.modes[info.Offset], nil
}

// SetPinMode reconfigures the line's direction.
func (c *Cdev) SetPinMode(info PinInfo, mode PinMode) error {
	if err := checkMode(info, mode); err != nil {
		return err
	}
	line, ok := c.lines[info.Offset]
	if !ok {
		return fmt.Errorf("line %d: %w", info.Offset, errNotRequested)
	}

	var opt gpiocdev.LineConfigOption = gpiocdev.AsInput
	if mode == ModeOutput {
		opt = gpiocdev.AsOutput(c.physical(info, false))
	}
	if err := line.Reconfigure(opt); err != nil {
		return fmt.Errorf("reconfigure line %d: %w", info.Offset, err)
	}
	c.modes[info.Offset] = mode
	return nil
}

// PinState returns the line's logical level.
func (c *Cdev) PinState(info PinInfo) (bool, error) {
	line, ok := c.lines[info.Offset]
	if !ok {
		return false, fmt.Errorf("line %d: %w", info.Offset, errNotRequested)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read line %d: %w", info.Offset, err)
	}
	state := v != 0
	if info.Invert {
		state = !state
	}
	return state, nil
}

// SetPinState drives an output line.
func (c *Cdev) SetPinState(info PinInfo, state bool) error {
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
	if err := c.lines[info.Offset].SetValue(c.physical(info, state)); err != nil {
		return fmt.Errorf("write line %d: %w", info.Offset, err)
	}
	return nil
}

// Close releases every line and the chip. Outputs are not reconfigured first,
// so a port left on stays on.
func (c *Cdev) Close() error {
	var errs []error
	for offset, line := range c.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", offset, err))
		}
		delete(c.lines, offset)
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}
	return errors.Join(errs...)
}

func (c *Cdev) physical(info PinInfo, state bool) int {
	if state != info.Invert {
		return 1
	}
	return 0
}
