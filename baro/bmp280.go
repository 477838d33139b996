package baro

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/codec"
)

const (
	bmp280RegCalibration = 0x88
	bmp280RegControl     = 0xF4
	bmp280RegData        = 0xF7

	bmp280ModeNormal = 0x03
)

var BMP280Spec = sensorhub.ChipSpec{
	Tag:       "bmp280",
	Addresses: []byte{0x77, 0x76},
	Registers: map[string]byte{
		"calibration": bmp280RegCalibration,
		"control":     bmp280RegControl,
		"data":        bmp280RegData,
	},
}

// BMP280 drives the Bosch BMP280 in normal mode: the chip free-runs its own
// conversions and the driver takes a repeating six-byte burst carrying both
// raw values, so every "data" event holds a coherent pair.
type BMP280 struct {
	*sensorhub.Runtime
	calib     codec.BMP280Calibration
	elevation *float64
	mu        sync.Mutex
	seaLevel  float64
	computed  Reading
	has       bool
}

func NewBMP280(bus sensorhub.Bus) *BMP280 {
	return &BMP280{Runtime: sensorhub.NewRuntime(bus,
		sensorhub.EventData, sensorhub.EventCalibrated)}
}

func (s *BMP280) Initialize(ctx context.Context, opts sensorhub.Options) error {
	stream, err := s.Begin(BMP280Spec, opts)
	if err != nil {
		return err
	}
	if err := s.Bus().Configure(ctx, s.Address()); err != nil {
		return fmt.Errorf("bmp280: could not configure bus: %w", err)
	}
	buf := make([]byte, 24)
	if err := s.Bus().ReadFromReg(ctx, s.Address(), bmp280RegCalibration, buf); err != nil {
		return fmt.Errorf("bmp280: could not read calibration coefficients: %w", err)
	}
	s.calib = codec.ParseBMP280Calibration(buf)

	osrs := byte(opts.Mode) + 1
	if osrs > 5 {
		osrs = 5
	}
	ctrl := osrs<<5 | osrs<<2 | bmp280ModeNormal
	if err := s.Bus().WriteReg(ctx, s.Address(), bmp280RegControl, ctrl); err != nil {
		return fmt.Errorf("bmp280: could not configure oversampling: %w", err)
	}

	s.elevation = opts.Elevation
	s.seaLevel = StandardSeaLevelPa
	if s.elevation != nil {
		// the reference needs a first sample, derived on arrival
		s.Transition(sensorhub.StateCalibrating)
	}

	err = s.Bus().ReadEvery(stream, s.Address(), bmp280RegData, 6, s.onData)
	if err != nil {
		return fmt.Errorf("bmp280: could not start data stream: %w", err)
	}
	if s.elevation == nil {
		s.Transition(sensorhub.StateStreaming)
	}
	return nil
}

func (s *BMP280) onData(buf []byte) {
	adcP := int32(codec.Uint24BE(buf[0:3]) >> 4)
	adcT := int32(codec.Uint24BE(buf[3:6]) >> 4)
	tFine := s.calib.TFine(adcT)
	temp := s.calib.Temperature(tFine)
	pressure := s.calib.Pressure(adcP, tFine)

	s.mu.Lock()
	if s.elevation != nil && !s.has {
		s.seaLevel = codec.SeaLevelPressure(pressure, *s.elevation)
	}
	first := !s.has
	reading := Reading{
		Temperature: temp,
		Pressure:    pressure,
		Altitude:    codec.Altitude(pressure, s.seaLevel),
	}
	s.computed = reading
	s.has = true
	s.mu.Unlock()

	if first && s.elevation != nil {
		s.Transition(sensorhub.StateStreaming)
		s.Publish(sensorhub.EventCalibrated, s.SeaLevel())
	}
	s.Publish(sensorhub.EventData, reading)
}

func (s *BMP280) SeaLevel() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seaLevel
}

func (s *BMP280) Computed() (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computed, s.has
}
