package baro

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/codec"
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

// Bosch BMP180 datasheet example coefficients.
var bmp180CalibFrame = []byte{
	0x01, 0x98, // AC1 = 408
	0xFF, 0xB8, // AC2 = -72
	0xC7, 0xD1, // AC3 = -14383
	0x7F, 0xE5, // AC4 = 32741
	0x7F, 0xF5, // AC5 = 32757
	0x5A, 0x71, // AC6 = 23153
	0x18, 0x2E, // B1 = 6190
	0x00, 0x04, // B2 = 4
	0x80, 0x00, // MB = -32768
	0xDD, 0xF9, // MC = -8711
	0x0B, 0x34, // MD = 2868
}

func queueBMP180Pair(bus *transport.Mock) {
	// UT = 27898, UP = 23843 at oss 0
	bus.Queue(0x77, 0xF6, []byte{0x6C, 0xFA})
	bus.Queue(0x77, 0xF6, []byte{0x5D, 0x23, 0x00})
}

func TestBMP180_PairCycle(t *testing.T) {
	bus := transport.NewMock()
	bus.Queue(0x77, 0xAA, bmp180CalibFrame)
	queueBMP180Pair(bus)

	s := NewBMP180(bus)
	var data collector
	require.NoError(t, s.On(sensorhub.EventData, data.add))
	require.NoError(t, s.Initialize(t.Context(), sensorhub.Options{Delay: time.Millisecond}))
	defer s.Halt()
	assert.Equal(t, sensorhub.StateStreaming, s.State())

	assert.Eventually(t, func() bool { return data.count() == 1 }, time.Second, 5*time.Millisecond)
	got, ok := s.Computed()
	require.True(t, ok)
	assert.InDelta(t, 15.0, got.Temperature, 0.05)
	assert.InDelta(t, 69964, got.Pressure, 1)
	assert.InDelta(t, codec.Altitude(69964, StandardSeaLevelPa), got.Altitude, 0.5)

	// temperature conversion first, then pressure at oss 0
	assert.Equal(t, []byte{0x2E, 0x34}, bus.RegValues(0x77, 0xF4))
}

func TestBMP180_OversamplingMode(t *testing.T) {
	bus := transport.NewMock()
	bus.Queue(0x77, 0xAA, bmp180CalibFrame)
	bus.Queue(0x77, 0xF6, []byte{0x6C, 0xFA})

	s := NewBMP180(bus)
	require.NoError(t, s.Initialize(t.Context(), sensorhub.Options{Mode: 3, Delay: time.Millisecond}))
	defer s.Halt()

	assert.Eventually(t, func() bool {
		vals := bus.RegValues(0x77, 0xF4)
		return len(vals) >= 2 && vals[1] == 0x34|3<<6
	}, time.Second, 5*time.Millisecond)
}

func TestBMP180_ElevationCalibration(t *testing.T) {
	bus := transport.NewMock()
	bus.Queue(0x77, 0xAA, bmp180CalibFrame)
	for i := 0; i < 4; i++ {
		queueBMP180Pair(bus) // averaged calibration pairs
	}
	queueBMP180Pair(bus) // first cycle pair

	s := NewBMP180(bus)
	var calibrated collector
	require.NoError(t, s.On(sensorhub.EventCalibrated, calibrated.add))
	opts := sensorhub.Options{Delay: time.Millisecond, Elevation: sensorhub.Meters(3000)}
	require.NoError(t, s.Initialize(t.Context(), opts))
	defer s.Halt()

	want := codec.SeaLevelPressure(69964, 3000)
	assert.InDelta(t, want, s.SeaLevel(), 1)
	assert.Eventually(t, func() bool { return calibrated.count() == 1 }, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool { got, ok := s.Computed(); return ok && got.Altitude != 0 }, time.Second, 5*time.Millisecond)
	got, _ := s.Computed()
	assert.InDelta(t, codec.Altitude(69964, want), got.Altitude, 0.5)

	// four full conversion pairs averaged before streaming starts
	vals := bus.RegValues(0x77, 0xF4)
	require.GreaterOrEqual(t, len(vals), 8)
	for i := 0; i < 8; i += 2 {
		assert.Equal(t, byte(0x2E), vals[i])
		assert.Equal(t, byte(0x34), vals[i+1])
	}
}

// TE MS5611 datasheet example PROM.
func scriptMS5611Prom(bus *transport.Mock) {
	bus.Queue(0x77, 0xA2, []byte{0x9C, 0xBF}) // C1 = 40127
	bus.Queue(0x77, 0xA4, []byte{0x90, 0x3C}) // C2 = 36924
	bus.Queue(0x77, 0xA6, []byte{0x5B, 0x15}) // C3 = 23317
	bus.Queue(0x77, 0xA8, []byte{0x5A, 0xF2}) // C4 = 23282
	bus.Queue(0x77, 0xAA, []byte{0x82, 0xB8}) // C5 = 33464
	bus.Queue(0x77, 0xAC, []byte{0x6E, 0x98}) // C6 = 28312
}

var (
	ms5611D2Frame = []byte{0x82, 0xC1, 0x3E} // D2 = 8569150
	ms5611D1Frame = []byte{0x8A, 0xA2, 0x1A} // D1 = 9085466
)

func TestMS5611_HalfCycleEmission(t *testing.T) {
	bus := transport.NewMock()
	scriptMS5611Prom(bus)
	bus.Queue(0x77, 0x00, ms5611D2Frame)
	bus.Queue(0x77, 0x00, ms5611D1Frame)
	bus.Queue(0x77, 0x00, ms5611D2Frame)

	s := NewMS5611(bus)
	var data collector
	require.NoError(t, s.On(sensorhub.EventData, data.add))
	opts := sensorhub.Options{Delay: time.Millisecond, Freq: 2 * time.Millisecond}
	require.NoError(t, s.Initialize(t.Context(), opts))
	defer s.Halt()

	// nothing after the first half, then one reading per completed half
	assert.Eventually(t, func() bool { return data.count() == 2 }, time.Second, 5*time.Millisecond)
	got, ok := s.Computed()
	require.True(t, ok)
	assert.InDelta(t, 20.07, got.Temperature, 0.01)
	assert.InDelta(t, 100009, got.Pressure, 1)

	writes := bus.Writes()
	require.GreaterOrEqual(t, len(writes), 3)
	assert.Equal(t, []byte{0x1E}, writes[0].Data) // reset
	assert.Equal(t, []byte{0x50}, writes[1].Data) // convert D2 at osr 256
	assert.Equal(t, []byte{0x40}, writes[2].Data) // convert D1 at osr 256
}

func TestMS5611_CycleAlternation(t *testing.T) {
	bus := transport.NewMock()
	scriptMS5611Prom(bus)
	bus.Always(0x77, 0x00, ms5611D2Frame)

	s := NewMS5611(bus)
	opts := sensorhub.Options{Delay: time.Millisecond, Freq: time.Millisecond}
	require.NoError(t, s.Initialize(t.Context(), opts))
	defer s.Halt()

	// reset plus at least three full conversion cycles, still going
	assert.Eventually(t, func() bool { return len(bus.Writes()) >= 7 }, time.Second, 5*time.Millisecond)

	writes := bus.Writes()
	require.Equal(t, []byte{0x1E}, writes[0].Data)
	for i := 1; i < len(writes); i++ {
		want := byte(0x50) // D2 on odd positions, D1 on even
		if i%2 == 0 {
			want = 0x40
		}
		assert.Equalf(t, []byte{want}, writes[i].Data, "conversion %d", i)
	}
}

func TestMS5611_ElevationCalibration(t *testing.T) {
	bus := transport.NewMock()
	scriptMS5611Prom(bus)
	for i := 0; i < 4; i++ {
		bus.Queue(0x77, 0x00, ms5611D2Frame)
		bus.Queue(0x77, 0x00, ms5611D1Frame)
	}

	s := NewMS5611(bus)
	var calibrated collector
	require.NoError(t, s.On(sensorhub.EventCalibrated, calibrated.add))
	opts := sensorhub.Options{Delay: time.Millisecond, Elevation: sensorhub.Meters(1000)}
	require.NoError(t, s.Initialize(t.Context(), opts))
	defer s.Halt()

	want := codec.SeaLevelPressure(100009, 1000)
	assert.InDelta(t, want, s.SeaLevel(), 2)
	assert.Eventually(t, func() bool { return calibrated.count() == 1 }, time.Second, 5*time.Millisecond)

	// four averaged conversion pairs after the reset
	writes := bus.Writes()
	require.GreaterOrEqual(t, len(writes), 9)
	assert.Equal(t, []byte{0x1E}, writes[0].Data)
	for i := 0; i < 4; i++ {
		assert.Equal(t, []byte{0x50}, writes[1+2*i].Data)
		assert.Equal(t, []byte{0x40}, writes[2+2*i].Data)
	}
}

func TestMS5611_OversamplingRate(t *testing.T) {
	bus := transport.NewMock()
	scriptMS5611Prom(bus)

	s := NewMS5611(bus)
	require.NoError(t, s.Initialize(t.Context(), sensorhub.Options{Mode: 4, Delay: time.Millisecond}))
	defer s.Halt()

	assert.Eventually(t, func() bool {
		writes := bus.Writes()
		return len(writes) >= 2 && writes[1].Data[0] == 0x58
	}, time.Second, 5*time.Millisecond)
}

// Bosch BMP280 datasheet example coefficients, little-endian words.
var bmp280CalibFrame = []byte{
	0x70, 0x6B, // T1 = 27504
	0x43, 0x67, // T2 = 26435
	0x18, 0xFC, // T3 = -1000
	0x7D, 0x8E, // P1 = 36477
	0x43, 0xD6, // P2 = -10685
	0xD0, 0x0B, // P3 = 3024
	0x27, 0x0B, // P4 = 2855
	0x8C, 0x00, // P5 = 140
	0xF9, 0xFF, // P6 = -7
	0x8C, 0x3C, // P7 = 15500
	0xF8, 0xC6, // P8 = -14600
	0x70, 0x17, // P9 = 6000
}

// adc_P = 415148, adc_T = 519888
var bmp280DataFrame = []byte{0x65, 0x5A, 0xC0, 0x7E, 0xED, 0x00}

func TestBMP280_BurstRead(t *testing.T) {
	bus := transport.NewMock()
	bus.Queue(0x77, 0x88, bmp280CalibFrame)

	s := NewBMP280(bus)
	var data collector
	require.NoError(t, s.On(sensorhub.EventData, data.add))
	require.NoError(t, s.Initialize(t.Context(), sensorhub.Options{}))
	assert.Equal(t, sensorhub.StateStreaming, s.State())
	assert.Equal(t, []byte{0x27}, bus.RegValues(0x77, 0xF4))
	require.Equal(t, 1, bus.Streams(0x77, 0xF7))

	bus.Deliver(0x77, 0xF7, bmp280DataFrame)
	assert.Eventually(t, func() bool { return data.count() == 1 }, time.Second, 5*time.Millisecond)

	got, ok := s.Computed()
	require.True(t, ok)
	assert.InDelta(t, 25.08, got.Temperature, 0.01)
	assert.InDelta(t, 96386.2, got.Pressure, 0.5)
}

func TestBMP280_ElevationReference(t *testing.T) {
	bus := transport.NewMock()
	bus.Queue(0x76, 0x88, bmp280CalibFrame)

	s := NewBMP280(bus)
	var calibrated collector
	require.NoError(t, s.On(sensorhub.EventCalibrated, calibrated.add))
	opts := sensorhub.Options{Address: 0x76, Elevation: sensorhub.Meters(100)}
	require.NoError(t, s.Initialize(t.Context(), opts))
	assert.Equal(t, sensorhub.StateCalibrating, s.State())

	bus.Deliver(0x76, 0xF7, bmp280DataFrame)
	assert.Eventually(t, func() bool { return calibrated.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, sensorhub.StateStreaming, s.State())

	got, _ := s.Computed()
	want := codec.SeaLevelPressure(got.Pressure, 100)
	assert.InDelta(t, want, s.SeaLevel(), 1)
	assert.InDelta(t, 100, got.Altitude, 2)
}

// pressure 100000 Pa (Q18.2), temperature 20.0 C (Q8.4)
var mplFrame = []byte{0x00, 0x61, 0xA8, 0x00, 0x14, 0x00}

func TestMPL3115A2_Streaming(t *testing.T) {
	bus := transport.NewMock()
	s := NewMPL3115A2(bus)
	var data collector
	require.NoError(t, s.On(sensorhub.EventData, data.add))
	require.NoError(t, s.Initialize(t.Context(), sensorhub.Options{}))

	// standby config then active
	assert.Equal(t, []byte{0x38, 0x39}, bus.RegValues(0x60, 0x26))
	assert.Equal(t, []byte{0x07}, bus.RegValues(0x60, 0x13))
	require.Equal(t, 1, bus.Streams(0x60, 0x00))

	bus.Deliver(0x60, 0x00, mplFrame)
	assert.Eventually(t, func() bool { return data.count() == 1 }, time.Second, 5*time.Millisecond)
	got, ok := s.Computed()
	require.True(t, ok)
	assert.InDelta(t, 100000, got.Pressure, 0.25)
	assert.InDelta(t, 20.0, got.Temperature, 1e-9)
	assert.InDelta(t, codec.Altitude(100000, StandardSeaLevelPa), got.Altitude, 0.5)
}

func TestMPL3115A2_TemperatureFraction(t *testing.T) {
	// 22.5 C
	_, temp := mpl3115a2Decode([]byte{0x00, 0x61, 0xA8, 0x00, 0x16, 0x80})
	assert.InDelta(t, 22.5, temp, 1e-9)
}

func TestMPL3115A2_ElevationCalibration(t *testing.T) {
	bus := transport.NewMock()
	bus.Always(0x60, 0x00, mplFrame)

	s := NewMPL3115A2(bus)
	var calibrated collector
	require.NoError(t, s.On(sensorhub.EventCalibrated, calibrated.add))
	opts := sensorhub.Options{Delay: time.Millisecond, Elevation: sensorhub.Meters(100)}
	require.NoError(t, s.Initialize(t.Context(), opts))

	want := codec.SeaLevelPressure(100000, 100)
	assert.InDelta(t, want, s.SeaLevel(), 1)
	assert.Eventually(t, func() bool { return calibrated.count() == 1 }, time.Second, 5*time.Millisecond)

	// derived reference written back halved into BAR_IN
	barIn := uint16(want / 2)
	assert.Equal(t, []byte{byte(barIn >> 8)}, bus.RegValues(0x60, 0x14))
	assert.Equal(t, []byte{byte(barIn)}, bus.RegValues(0x60, 0x15))

	// four averaged samples plus the settling conversion
	ctrl := bus.RegValues(0x60, 0x26)
	assert.Equal(t, []byte{0x38, 0x3A, 0x3A, 0x3A, 0x3A, 0x3A, 0x39}, ctrl)
}
