//go:build !linux

package dio

import "errors"

// Cdev is not available on non-Linux platforms.
type Cdev struct{}

// NewCdev returns an error on non-Linux platforms.
func NewCdev(name string) (*Cdev, error) {
	return nil, errors.New("dio: gpio character device not supported on this platform (requires Linux)")
}

func (c *Cdev) InitPin(info PinInfo) error                  { return errors.New("dio: not supported") }
func (c *Cdev) PinMode(info PinInfo) (PinMode, error)       { return ModeInput, errors.New("dio: not supported") }
func (c *Cdev) SetPinMode(info PinInfo, mode PinMode) error { return errors.New("dio: not supported") }
func (c *Cdev) PinState(info PinInfo) (bool, error)         { return false, errors.New("dio: not supported") }
func (c *Cdev) SetPinState(info PinInfo, state bool) error  { return errors.New("dio: not supported") }
func (c *Cdev) Close() error                                { return nil }
