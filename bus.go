package sensorhub

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// Bus is the shared two-wire transport every chip driver talks through.
// Transaction ordering and queuing are owned by the implementation; drivers
// assume sequential, in-order completion of the transactions they issue
// back-to-back. There is no retry policy at this level.
type Bus interface {
	// Configure prepares the transport for a session with the chip at the
	// given address (addressing mode, clock, internal buffers).
	Configure(ctx context.Context, address byte) error
	// WriteToAddr writes raw bytes to the chip at address.
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	// WriteReg writes a single register/value pair.
	WriteReg(ctx context.Context, address, register, value byte) error
	// ReadFromAddr reads len(buffer) bytes without selecting a register
	// first (command-oriented chips).
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
	// ReadFromReg selects a register and reads len(buffer) bytes from it.
	ReadFromReg(ctx context.Context, address, register byte, buffer []byte) error
	// ReadEvery re-issues the same register read at the transport's own
	// cadence, invoking fn once per completed read, until ctx is cancelled.
	// It returns after registering the stream.
	ReadEvery(ctx context.Context, address, register byte, length int, fn func([]byte)) error
}
