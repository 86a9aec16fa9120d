//go:build linux

package portio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// A regular file stands in for /dev/port: both treat the offset as the address.
func newPortFile(t *testing.T, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "port")
	if err := os.WriteFile(path, make([]byte, 0x400), mode); err != nil {
		t.Fatalf("create port file: %v", err)
	}
	return path
}

func TestDevPortReadWrite(t *testing.T) {
	d := &DevPort{Path: newPortFile(t, 0o600)}

	g, err := d.Acquire(0x2E, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer g.Release()

	if err := g.Out(0x2F, 0xA5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := g.In(0x2F)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0xA5 {
		t.Errorf("expected 0xA5, got 0x%02X", v)
	}

	if err := g.Out(0x30, 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestDevPortRelease(t *testing.T) {
	d := &DevPort{Path: newPortFile(t, 0o600)}

	g, err := d.Acquire(0x10, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.In(0x10); !errors.Is(err, ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
	if err := g.Release(); err != nil {
		t.Errorf("second release: unexpected error: %v", err)
	}
}

func TestDevPortPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses file permissions")
	}
	d := &DevPort{Path: newPortFile(t, 0o000)}

	_, err := d.Acquire(0x2E, 1)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestDevPortMissingDevice(t *testing.T) {
	d := &DevPort{Path: filepath.Join(t.TempDir(), "missing")}

	_, err := d.Acquire(0x2E, 1)
	if err == nil {
		t.Fatal("expected error for missing device")
	}
	if errors.Is(err, ErrPermissionDenied) {
		t.Errorf("missing device should not be reported as permission denied: %v", err)
	}
}
