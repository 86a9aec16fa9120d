package sio

import (
	"sync"

	"github.com/sweeney/poe-sio/internal/portio"
)

// FakeChip is an in-memory Super I/O chip for tests and simulation. It decodes
// the address/data port protocol, honours the unlock key and lock command, and
// banks registers 0x30 and above by logical device number.
type FakeChip struct {
	mu       sync.Mutex
	global   [0x30]byte
	banked   map[byte]*[0x100]byte
	index    byte
	keyPos   int
	unlocked bool
	locks    int
	unlocks  int
}

// NewFakeChip creates a locked chip reporting chipID, with the GPIO logical
// device's base address register set to base.
func NewFakeChip(chipID, base uint16) *FakeChip {
	c := &FakeChip{banked: make(map[byte]*[0x100]byte)}
	c.global[RegChipIDHigh] = byte(chipID >> 8)
	c.global[RegChipIDLow] = byte(chipID)
	c.SetRegister(LDNGPIO, RegBaseHigh, byte(base>>8))
	c.SetRegister(LDNGPIO, RegBaseLow, byte(base))
	return c
}

// Attach maps the chip onto the configuration ports of sim.
func (c *FakeChip) Attach(sim *portio.Sim) {
	sim.Map(AddressPort, DataPort, c)
}

// Register returns register reg of logical device ldn. Registers below 0x30 are
// shared by all logical devices.
func (c *FakeChip) Register(ldn, reg byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.slot(ldn, reg)
}

// SetRegister sets register reg of logical device ldn directly.
func (c *FakeChip) SetRegister(ldn, reg, value byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.slot(ldn, reg) = value
}

// Unlocked reports whether the configuration window is open.
func (c *FakeChip) Unlocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unlocked
}

// Locks returns how many times the lock command was received while unlocked.
func (c *FakeChip) Locks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locks
}

// Unlocks returns how many times the unlock key was accepted.
func (c *FakeChip) Unlocks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unlocks
}

// In implements portio.Device.
func (c *FakeChip) In(port uint16) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.unlocked {
		return 0xFF
	}
	if port == AddressPort {
		return c.index
	}
	return *c.slot(c.global[RegLDN], c.index)
}

// Out implements portio.Device.
func (c *FakeChip) Out(port uint16, value byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.unlocked {
		if port == AddressPort {
			c.feedKey(value)
		}
		return
	}

	if port == AddressPort {
		c.index = value
		return
	}

	if c.index == RegConfigControl {
		if value&lockValue != 0 {
			c.unlocked = false
			c.keyPos = 0
			c.locks++
		}
		return
	}
	if c.index == RegChipIDHigh || c.index == RegChipIDLow {
		return // read-only
	}
	*c.slot(c.global[RegLDN], c.index) = value
}

func (c *FakeChip) feedKey(b byte) {
	if b == unlockKey[c.keyPos] {
		c.keyPos++
	} else if b == unlockKey[0] {
		c.keyPos = 1
	} else {
		c.keyPos = 0
	}
	if c.keyPos == len(unlockKey) {
		c.unlocked = true
		c.keyPos = 0
		c.unlocks++
	}
}

func (c *FakeChip) slot(ldn, reg byte) *byte {
	if int(reg) < len(c.global) {
		return &c.global[reg]
	}
	bank, ok := c.banked[ldn]
	if !ok {
		bank = new([0x100]byte)
		c.banked[ldn] = bank
	}
	return &bank[reg]
}
