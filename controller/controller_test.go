package controller

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensorhub"
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

func TestResolve(t *testing.T) {
	b, err := Resolve("MPU6050")
	require.NoError(t, err)
	assert.NotNil(t, b)

	b, err = Resolve("")
	require.NoError(t, err)
	assert.NotNil(t, b)

	_, err = Resolve("nope")
	assert.ErrorIs(t, err, ErrUnknownController)
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Len(t, names, 9)
	assert.Contains(t, names, "bno055")
	assert.Contains(t, names, "mpl3115a2")
}

func TestTemperatureAlias(t *testing.T) {
	bus := transport.NewMock()
	reg := sensorhub.NewRegistry(bus)
	c, err := HTU21D(t.Context(), reg, sensorhub.Options{})
	require.NoError(t, err)

	thermo := c.Facet("thermometer")
	require.NotNil(t, thermo)
	assert.Same(t, thermo, c.Facet("temperature"))
	assert.Same(t, thermo, c.Facet("Temperature"))
	assert.NotContains(t, c.Facets(), "temperature")
}

func TestControllersShareOneDriver(t *testing.T) {
	bus := transport.NewMock()
	reg := sensorhub.NewRegistry(bus)

	c1, err := MPU6050(t.Context(), reg, sensorhub.Options{})
	require.NoError(t, err)
	c2, err := MPU6050(t.Context(), reg, sensorhub.Options{})
	require.NoError(t, err)

	assert.Same(t, c1.Driver(), c2.Driver())
	// one shared driver means one bus stream
	assert.Equal(t, 1, bus.Streams(0x68, 0x3B))
}

func TestFacetSampling(t *testing.T) {
	bus := transport.NewMock()
	reg := sensorhub.NewRegistry(bus)
	c, err := MPU6050(t.Context(), reg, sensorhub.Options{})
	require.NoError(t, err)

	frame := make([]byte, 14)
	frame[4] = 0x40 // 1g on Z
	bus.Deliver(0x68, 0x3B, frame)

	thermo := c.Facet("thermometer")
	thermo.Sample()
	require.Len(t, thermo.Value(), 1)
	assert.InDelta(t, 36.53, thermo.Value()[0], 1e-9)

	accel := c.Facet("accelerometer")
	accel.Sample()
	require.Len(t, accel.Value(), 3)
	assert.InDelta(t, 1.0, accel.Value()[2], 1e-9)
}

func TestBNO055FacetSet(t *testing.T) {
	bus := transport.NewMock()
	reg := sensorhub.NewRegistry(bus)
	c, err := BNO055(t.Context(), reg, sensorhub.Options{Delay: time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, []string{"accelerometer", "gyro", "compass", "orientation", "thermometer"}, c.Facets())
}

func TestControllerRelaysCalibrationEvents(t *testing.T) {
	bus := transport.NewMock()
	reg := sensorhub.NewRegistry(bus)
	c, err := BNO055(t.Context(), reg, sensorhub.Options{Delay: time.Millisecond})
	require.NoError(t, err)

	var calib, calibrated collector
	require.NoError(t, c.On(sensorhub.EventCalibration, calib.add))
	require.NoError(t, c.On(sensorhub.EventCalibrated, calibrated.add))

	bus.Deliver(0x28, 0x35, []byte{0x30})
	bus.Deliver(0x28, 0x35, []byte{0xFF})

	assert.Eventually(t, func() bool { return calibrated.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return calib.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestControllerStartAndHalt(t *testing.T) {
	bus := transport.NewMock()
	reg := sensorhub.NewRegistry(bus)
	c, err := MPU6050(t.Context(), reg, sensorhub.Options{Freq: 2 * time.Millisecond})
	require.NoError(t, err)

	bus.Deliver(0x68, 0x3B, make([]byte, 14))

	var data collector
	require.NoError(t, c.Facet("gyro").On(sensorhub.EventData, data.add))
	c.Start(t.Context())
	assert.Eventually(t, func() bool { return data.count() >= 2 }, time.Second, 5*time.Millisecond)
	c.Halt()
}
