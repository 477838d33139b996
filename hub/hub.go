// Package hub is the top-level facade: one controller resolved by name, its
// facets sampled on a shared cadence, all events funneled into one emitter.
package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gobot.io/x/gobot/v2"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/controller"
	"github.com/mklimuk/sensorhub/facet"
)

// DefaultFreq is the facade sampling period used when none is configured.
const DefaultFreq = 500 * time.Millisecond

// Config wires a facade to one controller.
type Config struct {
	// Controller is a case-insensitive controller name. Empty means the
	// default controller. Ignored when Builder is set.
	Controller string
	// Builder bypasses name resolution with a direct constructor.
	Builder controller.Builder
	// Registry shares chip drivers with other facades. Nil selects the
	// per-bus shared registry.
	Registry *sensorhub.Registry
	// Freq is the facade sampling period (DefaultFreq when zero).
	Freq time.Duration
	// Options is passed through to the driver.
	Options sensorhub.Options
}

// Change is the payload of facade-level "change" events.
type Change struct {
	Facet string
	Value facet.Sample
}

// Hub owns one controller and re-exposes its facets behind a single event
// stream: a periodic "data" carrying the hub itself, one "change" per facet
// value change tagged with the facet name, and the controller's calibration
// events unchanged.
type Hub struct {
	gobot.Eventer
	registry   *sensorhub.Registry
	controller *controller.Controller
	freq       time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

var (
	registriesMu sync.Mutex
	registries   = map[sensorhub.Bus]*sensorhub.Registry{}
)

// registryFor hands out one registry per bus, so independent facades on the
// same bus resolve to the same chip drivers instead of double-configuring
// the hardware.
func registryFor(bus sensorhub.Bus) *sensorhub.Registry {
	registriesMu.Lock()
	defer registriesMu.Unlock()
	reg, ok := registries[bus]
	if !ok {
		reg = sensorhub.NewRegistry(bus)
		registries[bus] = reg
	}
	return reg
}

// New resolves and initializes the configured controller. Unknown controller
// names fail here, not at start time.
func New(ctx context.Context, bus sensorhub.Bus, cfg Config) (*Hub, error) {
	build := cfg.Builder
	if build == nil {
		var err error
		build, err = controller.Resolve(cfg.Controller)
		if err != nil {
			return nil, err
		}
	}
	reg := cfg.Registry
	if reg == nil {
		reg = registryFor(bus)
	}
	ctrl, err := build(ctx, reg, cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("hub: could not build controller: %w", err)
	}
	freq := cfg.Freq
	if freq <= 0 {
		freq = DefaultFreq
	}

	e := gobot.NewEventer()
	e.AddEvent(sensorhub.EventData)
	e.AddEvent(sensorhub.EventChange)
	e.AddEvent(sensorhub.EventCalibration)
	e.AddEvent(sensorhub.EventCalibrated)
	h := &Hub{
		Eventer:    e,
		registry:   reg,
		controller: ctrl,
		freq:       freq,
	}

	for _, name := range ctrl.Facets() {
		name := name
		unit := ctrl.Facet(name)
		if err := unit.On(sensorhub.EventChange, func(v interface{}) {
			sample, _ := v.(facet.Sample)
			h.Publish(sensorhub.EventChange, Change{Facet: name, Value: sample})
		}); err != nil {
			return nil, fmt.Errorf("hub: could not subscribe to facet %s: %w", name, err)
		}
	}
	for _, name := range []string{sensorhub.EventCalibration, sensorhub.EventCalibrated} {
		name := name
		if err := ctrl.On(name, func(v interface{}) { h.Publish(name, v) }); err != nil {
			return nil, fmt.Errorf("hub: could not subscribe to controller event %s: %w", name, err)
		}
	}
	return h, nil
}

// Start runs the facet sampling loops and the facade ticker until ctx is
// cancelled or Halt is called.
func (h *Hub) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	h.controller.Start(ctx)
	go func() {
		ticker := time.NewTicker(h.freq)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Publish(sensorhub.EventData, h)
			}
		}
	}()
}

// Halt stops the facade ticker and the facet loops. The chip driver keeps
// its cycle; it is owned by the registry.
func (h *Hub) Halt() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	h.controller.Halt()
}

func (h *Hub) Controller() *controller.Controller { return h.controller }

// Facet resolves a facet by name, aliases included.
func (h *Hub) Facet(name string) facet.Unit { return h.controller.Facet(name) }

// Registry exposes the driver cache backing this facade.
func (h *Hub) Registry() *sensorhub.Registry { return h.registry }
