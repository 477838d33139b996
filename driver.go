package sensorhub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gobot.io/x/gobot/v2"
)

// Event names published by chip drivers, facets, controllers and the hub.
const (
	EventData        = "data"
	EventChange      = "change"
	EventCalibration = "calibration"
	EventCalibrated  = "calibrated"
)

var ErrAlreadyInitialized = fmt.Errorf("driver already initialized")

// State is the lifecycle position of a chip driver.
type State int

const (
	StateUninitialized State = iota
	StateConfiguring
	StateCalibrating
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateCalibrating:
		return "calibrating"
	case StateStreaming:
		return "streaming"
	default:
		return "uninitialized"
	}
}

// ChipSpec is the static description of one chip type: its identity tag,
// the candidate bus addresses (first entry is the default) and the symbolic
// register map.
type ChipSpec struct {
	Tag       string
	Addresses []byte
	Registers map[string]byte
}

// ResolveAddress picks the option override when present, the chip default
// otherwise.
func (s ChipSpec) ResolveAddress(opts Options) byte {
	if opts.Address != 0 {
		return opts.Address
	}
	return s.Addresses[0]
}

// Identity is the registry cache key for one chip at one resolved address,
// e.g. "bno055-28". It is a pure function of chip type and address.
func (s ChipSpec) Identity(opts Options) string {
	return fmt.Sprintf("%s-%x", s.Tag, s.ResolveAddress(opts))
}

// Driver is the capability set every chip driver implements. Concrete types
// carry chip-specific computed state accessors on top of it.
type Driver interface {
	gobot.Eventer
	// Initialize performs the chip's one-time configuration sequence and
	// starts its read cycle. It runs exactly once per instance; the
	// registry is what makes repeated requests idempotent.
	Initialize(ctx context.Context, opts Options) error
	// State reports the driver's lifecycle position.
	State() State
	// Halt cancels every repeating read and pending cycle owned by the
	// driver. There is no way to restart a halted driver.
	Halt()
}

// Runtime carries the pieces every chip driver shares: the event stream, the
// bus handle, the resolved address, the lifecycle state and the cancellation
// token for its repeating reads. Chip drivers embed it.
type Runtime struct {
	gobot.Eventer

	bus  Bus
	mu   sync.Mutex
	addr byte

	state       State
	initialized bool
	cancel      context.CancelFunc
}

// NewRuntime wires the event stream and registers the given event names.
func NewRuntime(bus Bus, events ...string) *Runtime {
	e := gobot.NewEventer()
	for _, name := range events {
		e.AddEvent(name)
	}
	return &Runtime{Eventer: e, bus: bus}
}

func (r *Runtime) Bus() Bus { return r.bus }

// Address is the bus address the driver resolved during Begin.
func (r *Runtime) Address() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr
}

func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Transition moves the driver to the given lifecycle state.
func (r *Runtime) Transition(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Begin guards the one-shot initialization contract, resolves the address
// and mints the stream context the driver's repeating reads live on. The
// stream context is detached from the caller: a driver outlives the call
// that initialized it and only Halt tears it down.
func (r *Runtime) Begin(spec ChipSpec, opts Options) (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil, fmt.Errorf("%s: %w", spec.Tag, ErrAlreadyInitialized)
	}
	r.initialized = true
	r.addr = spec.ResolveAddress(opts)
	r.state = StateConfiguring
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	return ctx, nil
}

// Halt cancels the stream context. Safe to call on an uninitialized driver.
func (r *Runtime) Halt() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Settle blocks for the requested duration or until ctx is cancelled,
// whichever comes first. Drivers use it for datasheet-mandated delays
// between a conversion trigger and the read-back.
func Settle(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
