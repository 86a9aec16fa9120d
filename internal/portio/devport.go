//go:build linux

package portio

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// DefaultDevPortPath is the character device exposing the I/O port space.
const DefaultDevPortPath = "/dev/port"

// DevPort accesses I/O ports through /dev/port, where the file offset is the port
// number. Opening it requires CAP_SYS_RAWIO.
type DevPort struct {
	Path string
}

// NewDevPort creates a DevPort using the default device path.
func NewDevPort() *DevPort {
	return &DevPort{Path: DefaultDevPortPath}
}

// Acquire opens the port device for the requested range. The descriptor is held
// until Release.
func (d *DevPort) Acquire(base uint16, count int) (Grant, error) {
	w, err := newWindow(base, count)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Open(d.Path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			return nil, fmt.Errorf("open %s for ports %s: %w", d.Path, w, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("open %s: %w", d.Path, err)
	}

	return &devPortGrant{fd: fd, w: w}, nil
}

type devPortGrant struct {
	fd       int
	w        window
	released bool
}

func (g *devPortGrant) In(port uint16) (byte, error) {
	if g.released {
		return 0, ErrReleased
	}
	if err := g.w.check(port); err != nil {
		return 0, err
	}

	var buf [1]byte
	n, err := unix.Pread(g.fd, buf[:], int64(port))
	if err != nil {
		return 0, fmt.Errorf("read port 0x%04X: %w", port, err)
	}
	if n != 1 {
		return 0, fmt.Errorf("read port 0x%04X: short read", port)
	}
	return buf[0], nil
}

func (g *devPortGrant) Out(port uint16, value byte) error {
	if g.released {
		return ErrReleased
	}
	if err := g.w.check(port); err != nil {
		return err
	}

	n, err := unix.Pwrite(g.fd, []byte{value}, int64(port))
	if err != nil {
		return fmt.Errorf("write port 0x%04X: %w", port, err)
	}
	if n != 1 {
		return fmt.Errorf("write port 0x%04X: short write", port)
	}
	return nil
}

func (g *devPortGrant) Release() error {
	if g.released {
		return nil
	}
	g.released = true
	if err := unix.Close(g.fd); err != nil {
		return fmt.Errorf("close port device: %w", err)
	}
	return nil
}
