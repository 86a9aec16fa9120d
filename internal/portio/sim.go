package portio

import (
	"fmt"
	"sync"
)

// Device handles accesses to the ports a Sim routes to it.
type Device interface {
	In(port uint16) byte
	Out(port uint16, value byte)
}

// OpKind identifies a recorded bus operation.
type OpKind string

const (
	OpAcquire OpKind = "acquire"
	OpDenied  OpKind = "denied"
	OpRelease OpKind = "release"
	OpIn      OpKind = "in"
	OpOut     OpKind = "out"
)

// Op is a single recorded bus operation.
type Op struct {
	Kind  OpKind
	Port  uint16
	Count int  // acquire/denied/release only
	Value byte // in/out only
}

func (o Op) String() string {
	switch o.Kind {
	case OpIn, OpOut:
		return fmt.Sprintf("%s 0x%04X 0x%02X", o.Kind, o.Port, o.Value)
	default:
		return fmt.Sprintf("%s 0x%04X+%d", o.Kind, o.Port, o.Count)
	}
}

// Sim is an in-memory port bus. Ports with no mapped device behave like plain
// latches: a read returns the last value written (or set with Poke).
type Sim struct {
	mu      sync.Mutex
	mem     map[uint16]byte
	devices map[uint16]Device
	deny    map[uint16]bool
	ops     []Op
	held    int
}

// NewSim creates an empty simulated bus.
func NewSim() *Sim {
	return &Sim{
		mem:     make(map[uint16]byte),
		devices: make(map[uint16]Device),
		deny:    make(map[uint16]bool),
	}
}

// Map routes ports start..end (inclusive) to dev.
func (s *Sim) Map(start, end uint16, dev Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for port := start; port <= end; port++ {
		s.devices[port] = dev
		if port == 0xFFFF {
			break
		}
	}
}

// Deny makes any Acquire covering port fail with ErrPermissionDenied.
func (s *Sim) Deny(port uint16) {
	s.mu.Lock()
	s.deny[port] = true
	s.mu.Unlock()
}

// Allow undoes Deny.
func (s *Sim) Allow(port uint16) {
	s.mu.Lock()
	delete(s.deny, port)
	s.mu.Unlock()
}

// Poke sets the latch value of an unmapped port without recording an op.
func (s *Sim) Poke(port uint16, value byte) {
	s.mu.Lock()
	s.mem[port] = value
	s.mu.Unlock()
}

// Peek returns the latch value of an unmapped port without recording an op.
func (s *Sim) Peek(port uint16) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem[port]
}

// Ops returns a copy of every operation recorded so far.
func (s *Sim) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Op, len(s.ops))
	copy(out, s.ops)
	return out
}

// Count returns how many recorded operations match kind and port.
func (s *Sim) Count(kind OpKind, port uint16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, op := range s.ops {
		if op.Kind == kind && op.Port == port {
			n++
		}
	}
	return n
}

// Writes returns the values written to port, in order.
func (s *Sim) Writes(port uint16) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, op := range s.ops {
		if op.Kind == OpOut && op.Port == port {
			out = append(out, op.Value)
		}
	}
	return out
}

// Held returns the number of grants acquired but not yet released.
func (s *Sim) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

// ResetOps clears the operation log.
func (s *Sim) ResetOps() {
	s.mu.Lock()
	s.ops = nil
	s.mu.Unlock()
}

// Acquire grants access unless a port in the range was denied.
func (s *Sim) Acquire(base uint16, count int) (Grant, error) {
	w, err := newWindow(base, count)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < count; i++ {
		if s.deny[base+uint16(i)] {
			s.ops = append(s.ops, Op{Kind: OpDenied, Port: base, Count: count})
			return nil, fmt.Errorf("ports %s: %w", w, ErrPermissionDenied)
		}
	}
	s.ops = append(s.ops, Op{Kind: OpAcquire, Port: base, Count: count})
	s.held++
	return &simGrant{sim: s, w: w}, nil
}

type simGrant struct {
	sim      *Sim
	w        window
	released bool
}

func (g *simGrant) In(port uint16) (byte, error) {
	if g.released {
		return 0, ErrReleased
	}
	if err := g.w.check(port); err != nil {
		return 0, err
	}

	s := g.sim
	s.mu.Lock()
	dev := s.devices[port]
	s.mu.Unlock()

	// Devices are called without the lock so they may use the bus themselves.
	var v byte
	if dev != nil {
		v = dev.In(port)
	} else {
		s.mu.Lock()
		v = s.mem[port]
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.ops = append(s.ops, Op{Kind: OpIn, Port: port, Value: v})
	s.mu.Unlock()
	return v, nil
}

func (g *simGrant) Out(port uint16, value byte) error {
	if g.released {
		return ErrReleased
	}
	if err := g.w.check(port); err != nil {
		return err
	}

	s := g.sim
	s.mu.Lock()
	dev := s.devices[port]
	s.ops = append(s.ops, Op{Kind: OpOut, Port: port, Value: value})
	if dev == nil {
		s.mem[port] = value
	}
	s.mu.Unlock()

	if dev != nil {
		dev.Out(port, value)
	}
	return nil
}

func (g *simGrant) Release() error {
	if g.released {
		return nil
	}
	g.released = true

	s := g.sim
	s.mu.Lock()
	s.ops = append(s.ops, Op{Kind: OpRelease, Port: g.w.base, Count: g.w.count})
	s.held--
	s.mu.Unlock()
	return nil
}
