package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/sensorhub"
)

var _ sensorhub.Bus = &Mock{}

// Tx is one recorded raw write.
type Tx struct {
	Addr byte
	Data []byte
}

// RegWrite is one recorded register/value write.
type RegWrite struct {
	Addr     byte
	Register byte
	Value    byte
}

type mockStream struct {
	ctx      context.Context
	addr     byte
	register byte
	length   int
	fn       func([]byte)
}

// Mock is a scripted in-memory bus. One-shot reads consume queued responses
// (sticky fallbacks optional); repeating reads only fire when the test calls
// Deliver. Everything written to the bus is recorded for assertions.
type Mock struct {
	mu          sync.Mutex
	queued      map[uint16][][]byte
	sticky      map[uint16][]byte
	plain       map[byte][][]byte
	stickyPlain map[byte][]byte
	writes      []Tx
	regWrites   []RegWrite
	streams     []*mockStream
}

func NewMock() *Mock {
	return &Mock{
		queued:      make(map[uint16][][]byte),
		sticky:      make(map[uint16][]byte),
		plain:       make(map[byte][][]byte),
		stickyPlain: make(map[byte][]byte),
	}
}

func key(addr, register byte) uint16 {
	return uint16(addr)<<8 | uint16(register)
}

// Queue appends a one-shot response for reads of the given register.
func (m *Mock) Queue(addr, register byte, resp []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(addr, register)
	m.queued[k] = append(m.queued[k], resp)
}

// QueuePlain appends a one-shot response for registerless reads.
func (m *Mock) QueuePlain(addr byte, resp []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plain[addr] = append(m.plain[addr], resp)
}

// AlwaysPlain installs a sticky response for registerless reads.
func (m *Mock) AlwaysPlain(addr byte, resp []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stickyPlain[addr] = resp
}

// Always installs a sticky response served whenever the queue for the
// register is empty.
func (m *Mock) Always(addr, register byte, resp []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sticky[key(addr, register)] = resp
}

func (m *Mock) Configure(ctx context.Context, address byte) error { return nil }

func (m *Mock) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := make([]byte, len(buffer))
	copy(data, buffer)
	m.writes = append(m.writes, Tx{Addr: address, Data: data})
	return nil
}

func (m *Mock) WriteReg(ctx context.Context, address, register, value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regWrites = append(m.regWrites, RegWrite{Addr: address, Register: register, Value: value})
	return nil
}

func (m *Mock) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q := m.plain[address]; len(q) > 0 {
		copy(buffer, q[0])
		m.plain[address] = q[1:]
		return nil
	}
	if resp, ok := m.stickyPlain[address]; ok {
		copy(buffer, resp)
		return nil
	}
	return fmt.Errorf("mock: no response scripted for plain read at address %x", address)
}

func (m *Mock) ReadFromReg(ctx context.Context, address, register byte, buffer []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(address, register)
	if q := m.queued[k]; len(q) > 0 {
		copy(buffer, q[0])
		m.queued[k] = q[1:]
		return nil
	}
	if resp, ok := m.sticky[k]; ok {
		copy(buffer, resp)
		return nil
	}
	return fmt.Errorf("mock: no response scripted for address %x register %x", address, register)
}

func (m *Mock) ReadEvery(ctx context.Context, address, register byte, length int, fn func([]byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = append(m.streams, &mockStream{ctx: ctx, addr: address, register: register, length: length, fn: fn})
	return nil
}

// Deliver synchronously invokes every live repeating-read callback matching
// the address and register, and reports how many fired.
func (m *Mock) Deliver(addr, register byte, data []byte) int {
	m.mu.Lock()
	var targets []*mockStream
	for _, s := range m.streams {
		if s.addr == addr && s.register == register && s.ctx.Err() == nil {
			targets = append(targets, s)
		}
	}
	m.mu.Unlock()
	for _, s := range targets {
		buf := make([]byte, len(data))
		copy(buf, data)
		s.fn(buf)
	}
	return len(targets)
}

// Streams counts live repeating-read registrations for the register.
func (m *Mock) Streams(addr, register byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.streams {
		if s.addr == addr && s.register == register && s.ctx.Err() == nil {
			n++
		}
	}
	return n
}

// Writes returns a snapshot of the recorded raw writes.
func (m *Mock) Writes() []Tx {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Tx, len(m.writes))
	copy(out, m.writes)
	return out
}

// RegWrites returns a snapshot of the recorded register writes.
func (m *Mock) RegWrites() []RegWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RegWrite, len(m.regWrites))
	copy(out, m.regWrites)
	return out
}

// RegValues lists the values written to one register, in order.
func (m *Mock) RegValues(addr, register byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []byte
	for _, w := range m.regWrites {
		if w.Addr == addr && w.Register == register {
			out = append(out, w.Value)
		}
	}
	return out
}
