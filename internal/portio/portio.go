// Package portio provides access to the host's 8-bit I/O port space.
// The real implementation uses the Linux /dev/port device.
// The simulated implementation backs ports with memory and pluggable devices
// so register protocols can be tested without hardware.
package portio

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied is returned when the OS refuses access to a port range.
// Retrying without elevated privilege cannot succeed.
var ErrPermissionDenied = errors.New("portio: permission denied")

// ErrOutOfRange is returned when a grant is used for a port it does not cover.
var ErrOutOfRange = errors.New("portio: port outside granted range")

// ErrReleased is returned when a grant is used after Release.
var ErrReleased = errors.New("portio: grant already released")

// Bus hands out access to ranges of I/O ports.
type Bus interface {
	// Acquire requests exclusive access to count consecutive ports starting at base.
	// The returned Grant must be released once the caller is done with it.
	Acquire(base uint16, count int) (Grant, error)
}

// Grant is permission to read and write a range of ports.
type Grant interface {
	// In reads one byte from port.
	In(port uint16) (byte, error)

	// Out writes one byte to port.
	Out(port uint16, value byte) error

	// Release gives the ports back.
	Release() error
}

// window is the port range covered by a grant.
type window struct {
	base  uint16
	count int
}

func newWindow(base uint16, count int) (window, error) {
	if count <= 0 || int(base)+count > 0x10000 {
		return window{}, fmt.Errorf("portio: invalid range 0x%04X+%d", base, count)
	}
	return window{base: base, count: count}, nil
}

func (w window) contains(port uint16) bool {
	return int(port) >= int(w.base) && int(port) < int(w.base)+w.count
}

func (w window) check(port uint16) error {
	if !w.contains(port) {
		return fmt.Errorf("port 0x%04X not in 0x%04X+%d: %w", port, w.base, w.count, ErrOutOfRange)
	}
	return nil
}

func (w window) String() string {
	return fmt.Sprintf("0x%04X-0x%04X", w.base, int(w.base)+w.count-1)
}
