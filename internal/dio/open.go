package dio

import (
	"fmt"

	"github.com/sweeney/poe-sio/internal/portio"
	"github.com/sweeney/poe-sio/internal/sio"
)

// Controller kinds accepted by Open.
const (
	KindIte8783 = "ite8783"
	KindCdev    = "gpiocdev"
	KindSim     = "sim"
)

// SimBaseAddress is the GPIO base address reported by the simulated chip.
const SimBaseAddress uint16 = 0x0A00

// Kinds lists the controller kinds Open understands.
func Kinds() []string {
	return []string{KindIte8783, KindCdev, KindSim}
}

// Options selects and parameterises a controller.
type Options struct {
	Kind string

	// Chip names the gpiochip for KindCdev.
	Chip string

	// Bus overrides the port bus for KindIte8783. Defaults to /dev/port.
	Bus portio.Bus
}

// Open constructs the controller named by opts.Kind.
func Open(opts Options) (Controller, error) {
	switch opts.Kind {
	case KindIte8783, "":
		bus := opts.Bus
		if bus == nil {
			bus = portio.NewDevPort()
		}
		c, err := NewIte8783(bus)
		if err != nil {
			return nil, err
		}
		return c, nil
	case KindCdev:
		if opts.Chip == "" {
			return nil, fmt.Errorf("dio: %s controller needs a chip name", KindCdev)
		}
		c, err := NewCdev(opts.Chip)
		if err != nil {
			return nil, err
		}
		return c, nil
	case KindSim:
		c, _, err := NewSimulated()
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("dio: unknown controller kind %q", opts.Kind)
	}
}

// NewSimulated returns an IT8783 controller backed by an in-memory chip, along
// with the simulated bus so callers can inspect or drive the data bank.
func NewSimulated() (*Ite8783, *portio.Sim, error) {
	bus := portio.NewSim()
	sio.NewFakeChip(ChipIDIte8783, SimBaseAddress).Attach(bus)
	c, err := NewIte8783(bus)
	if err != nil {
		return nil, nil, err
	}
	return c, bus, nil
}
