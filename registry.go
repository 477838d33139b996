package sensorhub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry deduplicates chip driver instances per (bus, identity) so that
// several logical components sharing one physical chip never double-configure
// or double-poll it. A registry is owned by and scoped to one bus.
type Registry struct {
	bus     Bus
	mu      sync.Mutex
	drivers map[string]Driver
}

func NewRegistry(bus Bus) *Registry {
	return &Registry{bus: bus, drivers: make(map[string]Driver)}
}

func (r *Registry) Bus() Bus { return r.bus }

// Get returns the cached driver for the chip's identity, constructing and
// initializing one on the first request. Repeated calls with the same spec
// and resolved address yield the identical instance.
func (r *Registry) Get(ctx context.Context, spec ChipSpec, opts Options, build func(Bus) Driver) (Driver, error) {
	identity := spec.Identity(opts)
	r.mu.Lock()
	if d, ok := r.drivers[identity]; ok {
		r.mu.Unlock()
		return d, nil
	}
	d := build(r.bus)
	r.drivers[identity] = d
	r.mu.Unlock()

	slog.Debug("initializing chip driver", "identity", identity)
	if err := d.Initialize(ctx, opts); err != nil {
		r.mu.Lock()
		delete(r.drivers, identity)
		r.mu.Unlock()
		return nil, fmt.Errorf("could not initialize %s: %w", identity, err)
	}
	return d, nil
}

// Clear drops every cached instance. Read cycles of drivers already handed
// out keep running; only future Get calls are affected.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.drivers = make(map[string]Driver)
	r.mu.Unlock()
}

// Size reports the number of cached driver instances.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drivers)
}
