package baro

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/codec"
)

const (
	bmp180RegCalibration = 0xAA
	bmp180RegControl     = 0xF4
	bmp180RegData        = 0xF6

	bmp180CmdTemperature = 0x2E
	bmp180CmdPressure    = 0x34
)

const bmp180TempDelay = 5 * time.Millisecond

// conversion time indexed by oversampling mode
var bmp180PressureDelays = [4]time.Duration{
	5 * time.Millisecond,
	8 * time.Millisecond,
	14 * time.Millisecond,
	26 * time.Millisecond,
}

var BMP180Spec = sensorhub.ChipSpec{
	Tag:       "bmp180",
	Addresses: []byte{0x77},
	Registers: map[string]byte{
		"calibration": bmp180RegCalibration,
		"control":     bmp180RegControl,
		"data":        bmp180RegData,
	},
}

// BMP180 drives the Bosch BMP180. The chip has one conversion engine, so the
// driver alternates temperature and pressure conversions; "data" goes out
// only after a full pair.
type BMP180 struct {
	*sensorhub.Runtime
	calib    codec.BMP180Calibration
	oss      uint
	seaLevel float64
	mu       sync.Mutex
	computed Reading
	has      bool
}

func NewBMP180(bus sensorhub.Bus) *BMP180 {
	return &BMP180{Runtime: sensorhub.NewRuntime(bus,
		sensorhub.EventData, sensorhub.EventCalibrated)}
}

func (s *BMP180) Initialize(ctx context.Context, opts sensorhub.Options) error {
	stream, err := s.Begin(BMP180Spec, opts)
	if err != nil {
		return err
	}
	if err := s.Bus().Configure(ctx, s.Address()); err != nil {
		return fmt.Errorf("bmp180: could not configure bus: %w", err)
	}
	buf := make([]byte, 22)
	if err := s.Bus().ReadFromReg(ctx, s.Address(), bmp180RegCalibration, buf); err != nil {
		return fmt.Errorf("bmp180: could not read calibration coefficients: %w", err)
	}
	s.calib = codec.ParseBMP180Calibration(buf)
	s.oss = uint(opts.Mode)
	if s.oss > 3 {
		s.oss = 3
	}

	if opts.Elevation != nil {
		s.Transition(sensorhub.StateCalibrating)
		var sum float64
		for i := 0; i < calibrationSamples; i++ {
			_, pressure, err := s.measure(ctx, opts.Delay)
			if err != nil {
				return fmt.Errorf("bmp180: elevation calibration failed: %w", err)
			}
			sum += pressure
		}
		s.seaLevel = codec.SeaLevelPressure(sum/calibrationSamples, *opts.Elevation)
		s.Publish(sensorhub.EventCalibrated, s.seaLevel)
	} else {
		s.seaLevel = StandardSeaLevelPa
	}

	go s.cycle(stream, opts.Delay, cycleFreq(opts))
	s.Transition(sensorhub.StateStreaming)
	return nil
}

// measure runs one full temperature+pressure conversion pair.
func (s *BMP180) measure(ctx context.Context, override time.Duration) (tempC, pressurePa float64, err error) {
	addr := s.Address()
	tempDelay := bmp180TempDelay
	pressureDelay := bmp180PressureDelays[s.oss]
	if override > 0 {
		tempDelay = override
		pressureDelay = override
	}

	if err := s.Bus().WriteReg(ctx, addr, bmp180RegControl, bmp180CmdTemperature); err != nil {
		return 0, 0, fmt.Errorf("could not start temperature conversion: %w", err)
	}
	if err := sensorhub.Settle(ctx, tempDelay); err != nil {
		return 0, 0, err
	}
	buf := make([]byte, 2)
	if err := s.Bus().ReadFromReg(ctx, addr, bmp180RegData, buf); err != nil {
		return 0, 0, fmt.Errorf("could not read temperature: %w", err)
	}
	ut := int32(codec.Uint16BE(buf))

	if err := s.Bus().WriteReg(ctx, addr, bmp180RegControl, bmp180CmdPressure|byte(s.oss)<<6); err != nil {
		return 0, 0, fmt.Errorf("could not start pressure conversion: %w", err)
	}
	if err := sensorhub.Settle(ctx, pressureDelay); err != nil {
		return 0, 0, err
	}
	buf = make([]byte, 3)
	if err := s.Bus().ReadFromReg(ctx, addr, bmp180RegData, buf); err != nil {
		return 0, 0, fmt.Errorf("could not read pressure: %w", err)
	}
	up := int32(codec.Uint24BE(buf) >> (8 - s.oss))

	b5 := s.calib.B5(ut)
	return s.calib.Temperature(b5), float64(s.calib.Pressure(up, b5, s.oss)), nil
}

func (s *BMP180) cycle(ctx context.Context, override, freq time.Duration) {
	for {
		temp, pressure, err := s.measure(ctx, override)
		if err != nil {
			if ctx.Err() == nil {
				slog.Debug("bmp180: measurement failed, stopping cycle", "error", err)
			}
			return
		}
		reading := Reading{
			Temperature: temp,
			Pressure:    pressure,
			Altitude:    codec.Altitude(pressure, s.seaLevel),
		}
		s.mu.Lock()
		s.computed = reading
		s.has = true
		s.mu.Unlock()
		s.Publish(sensorhub.EventData, reading)
		if err := sensorhub.Settle(ctx, freq); err != nil {
			return
		}
	}
}

func (s *BMP180) SeaLevel() float64 { return s.seaLevel }

func (s *BMP180) Computed() (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computed, s.has
}
