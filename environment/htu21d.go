// Package environment implements the humidity/temperature chip drivers.
package environment

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/codec"
)

const (
	htu21dRegTemperature = 0xE3
	htu21dRegHumidity    = 0xE5
)

var HTU21DSpec = sensorhub.ChipSpec{
	Tag:       "htu21d",
	Addresses: []byte{0x40},
	Registers: map[string]byte{
		"temperature": htu21dRegTemperature,
		"humidity":    htu21dRegHumidity,
	},
}

// HTU21DData is the computed record; Has* flags stay false until the first
// successful read of the corresponding channel.
type HTU21DData struct {
	Temperature    float64
	HasTemperature bool
	Humidity       float64
	HasHumidity    bool
}

// HTU21D drives the Measurement Specialties HTU21D humidity/temperature
// sensor: two independent repeating reads, one per channel, each emitting
// "data" on arrival. No calibration phase, no shared state machine.
type HTU21D struct {
	*sensorhub.Runtime
	mu       sync.Mutex
	computed HTU21DData
}

func NewHTU21D(bus sensorhub.Bus) *HTU21D {
	return &HTU21D{Runtime: sensorhub.NewRuntime(bus, sensorhub.EventData)}
}

func (s *HTU21D) Initialize(ctx context.Context, opts sensorhub.Options) error {
	stream, err := s.Begin(HTU21DSpec, opts)
	if err != nil {
		return err
	}
	if err := s.Bus().Configure(ctx, s.Address()); err != nil {
		return fmt.Errorf("htu21d: could not configure bus: %w", err)
	}
	err = s.Bus().ReadEvery(stream, s.Address(), htu21dRegTemperature, 3, func(buf []byte) {
		// low two status bits are not part of the measurement
		raw := codec.Uint16BE(buf[0:2]) & 0xFFFC
		s.mu.Lock()
		s.computed.Temperature = -46.85 + 175.72*float64(raw)/65536
		s.computed.HasTemperature = true
		snapshot := s.computed
		s.mu.Unlock()
		s.Publish(sensorhub.EventData, snapshot)
	})
	if err != nil {
		return fmt.Errorf("htu21d: could not start temperature stream: %w", err)
	}
	err = s.Bus().ReadEvery(stream, s.Address(), htu21dRegHumidity, 3, func(buf []byte) {
		raw := codec.Uint16BE(buf[0:2]) & 0xFFFC
		hum := -6 + 125*float64(raw)/65536
		if hum < 0 {
			hum = 0
		} else if hum > 100 {
			hum = 100
		}
		s.mu.Lock()
		s.computed.Humidity = hum
		s.computed.HasHumidity = true
		snapshot := s.computed
		s.mu.Unlock()
		s.Publish(sensorhub.EventData, snapshot)
	})
	if err != nil {
		return fmt.Errorf("htu21d: could not start humidity stream: %w", err)
	}
	s.Transition(sensorhub.StateStreaming)
	return nil
}

func (s *HTU21D) Computed() HTU21DData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computed
}
