// Package transport provides Bus implementations: a periph.io-backed Linux
// I2C bus, the MCP2221 USB-to-I2C bridge and a scripted in-memory bus for
// tests and demos.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/sensorhub"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var _ sensorhub.Bus = &PeriphBus{}

// DefaultPollInterval is the cadence repeating reads are re-issued at when
// the bus is not constructed with an explicit one.
const DefaultPollInterval = 20 * time.Millisecond

// PeriphBus adapts a periph.io I2C bus to the sensorhub transport contract.
type PeriphBus struct {
	bus  i2c.BusCloser
	poll time.Duration
}

type PeriphOpt func(*PeriphBus)

// WithPollInterval sets the repeating-read cadence.
func WithPollInterval(d time.Duration) PeriphOpt {
	return func(b *PeriphBus) { b.poll = d }
}

// NewPeriphBus initializes the periph host and opens the named I2C bus
// ("" selects the first available one).
func NewPeriphBus(dev string, opts ...PeriphOpt) (*PeriphBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	b := &PeriphBus{bus: bus, poll: DefaultPollInterval}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *PeriphBus) Configure(ctx context.Context, address byte) error {
	// addressing is per-transaction on the Linux bus, nothing to prime
	return nil
}

func (b *PeriphBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := b.bus.Tx(uint16(address), buffer, nil); err != nil {
		return fmt.Errorf("could not write to i2c address %x: %w", address, err)
	}
	return nil
}

func (b *PeriphBus) WriteReg(ctx context.Context, address, register, value byte) error {
	return b.WriteToAddr(ctx, address, []byte{register, value})
}

func (b *PeriphBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := b.bus.Tx(uint16(address), nil, buffer); err != nil {
		return fmt.Errorf("could not read from i2c address %x: %w", address, err)
	}
	return nil
}

func (b *PeriphBus) ReadFromReg(ctx context.Context, address, register byte, buffer []byte) error {
	if err := b.bus.Tx(uint16(address), []byte{register}, buffer); err != nil {
		return fmt.Errorf("could not read register %x from i2c address %x: %w", register, address, err)
	}
	return nil
}

// ReadEvery re-issues the register read on the bus's poll cadence until ctx
// is cancelled. Failed reads stall silently at debug level: there is no
// retry or timeout policy at this layer.
func (b *PeriphBus) ReadEvery(ctx context.Context, address, register byte, length int, fn func([]byte)) error {
	go func() {
		ticker := time.NewTicker(b.poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			buf := make([]byte, length)
			if err := b.ReadFromReg(ctx, address, register, buf); err != nil {
				slog.Debug("repeating read failed", "address", address, "register", register, "error", err)
				continue
			}
			fn(buf)
		}
	}()
	return nil
}

func (b *PeriphBus) Close() error {
	return b.bus.Close()
}
