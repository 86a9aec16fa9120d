//go:build !linux

package portio

import "errors"

// DefaultDevPortPath is the character device exposing the I/O port space.
const DefaultDevPortPath = "/dev/port"

// DevPort is not available on non-Linux platforms.
type DevPort struct {
	Path string
}

// NewDevPort returns a DevPort that always fails to acquire.
func NewDevPort() *DevPort {
	return &DevPort{Path: DefaultDevPortPath}
}

// Acquire is not implemented on non-Linux platforms.
func (d *DevPort) Acquire(base uint16, count int) (Grant, error) {
	return nil, errors.New("portio: not supported on this platform (requires Linux)")
}
