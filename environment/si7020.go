package environment

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/codec"
)

const (
	si7020RegHumidity    = 0xE5
	si7020RegTemperature = 0xE0
)

var SI7020Spec = sensorhub.ChipSpec{
	Tag:       "si7020",
	Addresses: []byte{0x40},
	Registers: map[string]byte{
		"humidity":    si7020RegHumidity,
		"temperature": si7020RegTemperature,
	},
}

type SI7020Data struct {
	Temperature    float64
	HasTemperature bool
	Humidity       float64
	HasHumidity    bool
}

// SI7020 drives the Silicon Labs Si7020. The temperature register 0xE0
// returns the value captured during the previous humidity conversion, so
// the humidity stream is the pacemaker and the temperature stream piggybacks
// on it at the same rate.
type SI7020 struct {
	*sensorhub.Runtime
	mu       sync.Mutex
	computed SI7020Data
}

func NewSI7020(bus sensorhub.Bus) *SI7020 {
	return &SI7020{Runtime: sensorhub.NewRuntime(bus, sensorhub.EventData)}
}

func (s *SI7020) Initialize(ctx context.Context, opts sensorhub.Options) error {
	stream, err := s.Begin(SI7020Spec, opts)
	if err != nil {
		return err
	}
	if err := s.Bus().Configure(ctx, s.Address()); err != nil {
		return fmt.Errorf("si7020: could not configure bus: %w", err)
	}
	err = s.Bus().ReadEvery(stream, s.Address(), si7020RegHumidity, 2, func(buf []byte) {
		raw := codec.Uint16BE(buf)
		hum := 125*float64(raw)/65536 - 6
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
		return fmt.Errorf("si7020: could not start humidity stream: %w", err)
	}
	err = s.Bus().ReadEvery(stream, s.Address(), si7020RegTemperature, 2, func(buf []byte) {
		raw := codec.Uint16BE(buf)
		s.mu.Lock()
		s.computed.Temperature = 175.72*float64(raw)/65536 - 46.85
		s.computed.HasTemperature = true
		snapshot := s.computed
		s.mu.Unlock()
		s.Publish(sensorhub.EventData, snapshot)
	})
	if err != nil {
		return fmt.Errorf("si7020: could not start temperature stream: %w", err)
	}
	s.Transition(sensorhub.StateStreaming)
	return nil
}

func (s *SI7020) Computed() SI7020Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computed
}
