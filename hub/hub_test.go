package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/controller"
	"github.com/mklimuk/sensorhub/transport"
)

type collector struct {
	mu     sync.Mutex
	events []interface{}
}

func (c *collector) add(data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, data)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) all() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.events))
	copy(out, c.events)
	return out
}

func TestNew_UnknownController(t *testing.T) {
	_, err := New(t.Context(), transport.NewMock(), Config{Controller: "nope"})
	assert.ErrorIs(t, err, controller.ErrUnknownController)
}

func TestNew_DefaultController(t *testing.T) {
	bus := transport.NewMock()
	h, err := New(t.Context(), bus, Config{})
	require.NoError(t, err)
	assert.Equal(t, controller.DefaultController, h.Controller().Name())
	assert.Equal(t, 1, bus.Streams(0x68, 0x3B))
}

func TestNew_CaseInsensitiveName(t *testing.T) {
	h, err := New(t.Context(), transport.NewMock(), Config{Controller: "HTU21D"})
	require.NoError(t, err)
	assert.Equal(t, "htu21d", h.Controller().Name())
}

func TestNew_SharedDriverAcrossFacades(t *testing.T) {
	bus := transport.NewMock()
	h1, err := New(t.Context(), bus, Config{})
	require.NoError(t, err)
	h2, err := New(t.Context(), bus, Config{})
	require.NoError(t, err)

	assert.Same(t, h1.Controller().Driver(), h2.Controller().Driver())
	// one stream and one wake write, the chip is configured once
	assert.Equal(t, 1, bus.Streams(0x68, 0x3B))
	assert.Len(t, bus.RegValues(0x68, 0x6B), 1)
}

func TestNew_ExplicitRegistry(t *testing.T) {
	bus := transport.NewMock()
	reg := sensorhub.NewRegistry(bus)
	h, err := New(t.Context(), bus, Config{Registry: reg})
	require.NoError(t, err)
	assert.Same(t, reg, h.Registry())
	assert.Equal(t, 1, reg.Size())
}

func TestNew_DirectBuilder(t *testing.T) {
	h, err := New(t.Context(), transport.NewMock(), Config{Builder: controller.SI7020})
	require.NoError(t, err)
	assert.Equal(t, "si7020", h.Controller().Name())
}

func TestHub_PeriodicData(t *testing.T) {
	bus := transport.NewMock()
	h, err := New(t.Context(), bus, Config{Freq: 2 * time.Millisecond})
	require.NoError(t, err)

	var data collector
	require.NoError(t, h.On(sensorhub.EventData, data.add))
	h.Start(t.Context())
	defer h.Halt()

	assert.Eventually(t, func() bool { return data.count() >= 3 }, time.Second, 5*time.Millisecond)
	// the payload is the facade itself
	assert.Same(t, h, data.all()[0])
}

func TestHub_TaggedChanges(t *testing.T) {
	bus := transport.NewMock()
	cfg := Config{
		Controller: "htu21d",
		Freq:       2 * time.Millisecond,
		Options:    sensorhub.Options{Freq: 2 * time.Millisecond},
	}
	h, err := New(t.Context(), bus, cfg)
	require.NoError(t, err)

	var changes collector
	require.NoError(t, h.On(sensorhub.EventChange, changes.add))
	h.Start(t.Context())
	defer h.Halt()

	bus.Deliver(0x40, 0xE5, []byte{0x7C, 0x80, 0x00})
	assert.Eventually(t, func() bool { return changes.count() >= 1 }, time.Second, 5*time.Millisecond)

	change, ok := changes.all()[0].(Change)
	require.True(t, ok)
	assert.Equal(t, "hygrometer", change.Facet)
	require.Len(t, change.Value, 1)
	assert.InDelta(t, 54.79, change.Value[0], 0.05)
}

func TestHub_HaltStopsTicker(t *testing.T) {
	h, err := New(t.Context(), transport.NewMock(), Config{Freq: 2 * time.Millisecond})
	require.NoError(t, err)

	var data collector
	require.NoError(t, h.On(sensorhub.EventData, data.add))
	h.Start(t.Context())
	assert.Eventually(t, func() bool { return data.count() >= 1 }, time.Second, 5*time.Millisecond)
	h.Halt()

	time.Sleep(10 * time.Millisecond)
	n := data.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, data.count())
}

func TestHub_RelaysCalibrated(t *testing.T) {
	bus := transport.NewMock()
	cfg := Config{
		Controller: "bno055",
		Options:    sensorhub.Options{Delay: time.Millisecond},
	}
	h, err := New(t.Context(), bus, cfg)
	require.NoError(t, err)

	var calibrated collector
	require.NoError(t, h.On(sensorhub.EventCalibrated, calibrated.add))

	bus.Deliver(0x28, 0x35, []byte{0xFF})
	assert.Eventually(t, func() bool { return calibrated.count() == 1 }, time.Second, 5*time.Millisecond)
}
