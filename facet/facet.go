// Package facet implements the typed sub-measurement units a controller
// exposes: each facet samples its chip driver's computed record on its own
// cadence, publishes "data" on every sample and "change" when the value
// moved past the configured threshold.
package facet

import (
	"context"
	"sync"
	"time"

	"gobot.io/x/gobot/v2"

	"github.com/mklimuk/sensorhub"
)

// DefaultFreq is the sampling period used when none is configured.
const DefaultFreq = 100 * time.Millisecond

// Sample is one multi-dimensional reading (one entry per axis/component).
type Sample []float64

// Source pulls the current value from the backing driver. ok is false until
// the driver has produced the first reading for this measurement.
type Source func() (Sample, bool)

// Config tunes one facet's sampling loop.
type Config struct {
	// Freq is the sampling period (DefaultFreq when zero).
	Freq time.Duration
	// Threshold is the per-component delta below which a new sample is not
	// considered a change.
	Threshold float64
}

// Unit is the capability set shared by every facet type.
type Unit interface {
	gobot.Eventer
	Name() string
	// Sample performs one sampling step synchronously.
	Sample()
	// Start runs the sampling loop until ctx is cancelled.
	Start(ctx context.Context)
	Halt()
	Value() Sample
}

// Facet is the generic sampling/change-detection core every typed facet
// embeds.
type Facet struct {
	gobot.Eventer

	name      string
	freq      time.Duration
	threshold float64
	source    Source

	mu     sync.Mutex
	last   Sample
	seen   bool
	cancel context.CancelFunc
}

func New(name string, cfg Config, source Source) *Facet {
	if cfg.Freq <= 0 {
		cfg.Freq = DefaultFreq
	}
	e := gobot.NewEventer()
	e.AddEvent(sensorhub.EventData)
	e.AddEvent(sensorhub.EventChange)
	return &Facet{
		Eventer:   e,
		name:      name,
		freq:      cfg.Freq,
		threshold: cfg.Threshold,
		source:    source,
	}
}

func (f *Facet) Name() string { return f.name }

// Value is the last sample that registered as a change.
func (f *Facet) Value() Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(Sample, len(f.last))
	copy(out, f.last)
	return out
}

// Sample pulls one value from the source, publishes "data" and, when the
// value moved past the threshold on any component, records it and publishes
// "change".
func (f *Facet) Sample() {
	v, ok := f.source()
	if !ok {
		return
	}
	f.Publish(sensorhub.EventData, v)

	f.mu.Lock()
	changed := !f.seen || len(v) != len(f.last)
	if !changed {
		for i := range v {
			d := v[i] - f.last[i]
			if d > f.threshold || d < -f.threshold {
				changed = true
				break
			}
		}
	}
	if changed {
		f.last = v
		f.seen = true
	}
	f.mu.Unlock()

	if changed {
		f.Publish(sensorhub.EventChange, v)
	}
}

// Start runs the sampling loop on the facet's own cadence.
func (f *Facet) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()
	go func() {
		ticker := time.NewTicker(f.freq)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.Sample()
			}
		}
	}()
}

func (f *Facet) Halt() {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func component(s Sample, i int) float64 {
	if i >= len(s) {
		return 0
	}
	return s[i]
}
