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
	ms5611CmdReset     = 0x1E
	ms5611CmdConvertD1 = 0x40
	ms5611CmdConvertD2 = 0x50
	ms5611CmdADCRead   = 0x00
	ms5611CmdPromBase  = 0xA2
)

const ms5611ResetDelay = 3 * time.Millisecond

// conversion time indexed by oversampling rate (256..4096)
var ms5611ConversionDelays = [5]time.Duration{
	time.Millisecond,
	2 * time.Millisecond,
	3 * time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
}

var MS5611Spec = sensorhub.ChipSpec{
	Tag:       "ms5611",
	Addresses: []byte{0x77, 0x76},
	Registers: map[string]byte{
		"adc":  ms5611CmdADCRead,
		"prom": ms5611CmdPromBase,
	},
}

// MS5611 drives the TE MS5611-01BA. Like the BMP180 it alternates D2
// (temperature) and D1 (pressure) conversions, but it publishes "data" on
// every completed half once both halves have been seen, so each sample pairs
// a fresh value with the most recent one from the other half.
type MS5611 struct {
	*sensorhub.Runtime
	prom     codec.MS5611Prom
	osr      int
	seaLevel float64
	mu       sync.Mutex
	computed Reading
	d1       uint32
	d2       uint32
	hasD1    bool
	hasD2    bool
}

func NewMS5611(bus sensorhub.Bus) *MS5611 {
	return &MS5611{Runtime: sensorhub.NewRuntime(bus,
		sensorhub.EventData, sensorhub.EventCalibrated)}
}

func (s *MS5611) Initialize(ctx context.Context, opts sensorhub.Options) error {
	stream, err := s.Begin(MS5611Spec, opts)
	if err != nil {
		return err
	}
	if err := s.Bus().Configure(ctx, s.Address()); err != nil {
		return fmt.Errorf("ms5611: could not configure bus: %w", err)
	}
	if err := s.Bus().WriteToAddr(ctx, s.Address(), []byte{ms5611CmdReset}); err != nil {
		return fmt.Errorf("ms5611: could not reset chip: %w", err)
	}
	resetDelay := ms5611ResetDelay
	if opts.Delay > 0 {
		resetDelay = opts.Delay
	}
	if err := sensorhub.Settle(ctx, resetDelay); err != nil {
		return fmt.Errorf("ms5611: interrupted while waiting for reset: %w", err)
	}
	if err := s.readProm(ctx); err != nil {
		return err
	}
	s.osr = opts.Mode
	if s.osr < 0 {
		s.osr = 0
	} else if s.osr > 4 {
		s.osr = 4
	}

	if opts.Elevation != nil {
		s.Transition(sensorhub.StateCalibrating)
		var sum float64
		for i := 0; i < calibrationSamples; i++ {
			d2, err := s.convert(ctx, ms5611CmdConvertD2, opts.Delay)
			if err != nil {
				return fmt.Errorf("ms5611: elevation calibration failed: %w", err)
			}
			d1, err := s.convert(ctx, ms5611CmdConvertD1, opts.Delay)
			if err != nil {
				return fmt.Errorf("ms5611: elevation calibration failed: %w", err)
			}
			_, pressure := s.prom.Compensate(d1, d2)
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

func (s *MS5611) readProm(ctx context.Context) error {
	var words [6]uint16
	buf := make([]byte, 2)
	for i := range words {
		cmd := byte(ms5611CmdPromBase + 2*i)
		if err := s.Bus().ReadFromReg(ctx, s.Address(), cmd, buf); err != nil {
			return fmt.Errorf("ms5611: could not read PROM word %d: %w", i+1, err)
		}
		words[i] = codec.Uint16BE(buf)
	}
	s.prom = codec.MS5611Prom{
		C1: words[0], C2: words[1], C3: words[2],
		C4: words[3], C5: words[4], C6: words[5],
	}
	return nil
}

// convert starts one ADC conversion and reads the 24-bit result.
func (s *MS5611) convert(ctx context.Context, cmd byte, override time.Duration) (uint32, error) {
	delay := ms5611ConversionDelays[s.osr]
	if override > 0 {
		delay = override
	}
	if err := s.Bus().WriteToAddr(ctx, s.Address(), []byte{cmd + byte(2*s.osr)}); err != nil {
		return 0, fmt.Errorf("could not start conversion %#x: %w", cmd, err)
	}
	if err := sensorhub.Settle(ctx, delay); err != nil {
		return 0, err
	}
	buf := make([]byte, 3)
	if err := s.Bus().ReadFromReg(ctx, s.Address(), ms5611CmdADCRead, buf); err != nil {
		return 0, fmt.Errorf("could not read ADC: %w", err)
	}
	return codec.Uint24BE(buf), nil
}

func (s *MS5611) cycle(ctx context.Context, override, freq time.Duration) {
	for {
		d2, err := s.convert(ctx, ms5611CmdConvertD2, override)
		if err != nil {
			if ctx.Err() == nil {
				slog.Debug("ms5611: conversion failed, stopping cycle", "error", err)
			}
			return
		}
		s.publishHalf(func() { s.d2 = d2; s.hasD2 = true })

		d1, err := s.convert(ctx, ms5611CmdConvertD1, override)
		if err != nil {
			if ctx.Err() == nil {
				slog.Debug("ms5611: conversion failed, stopping cycle", "error", err)
			}
			return
		}
		s.publishHalf(func() { s.d1 = d1; s.hasD1 = true })

		if err := sensorhub.Settle(ctx, freq); err != nil {
			return
		}
	}
}

// publishHalf records the fresh half and emits a reading if both halves have
// completed at least once.
func (s *MS5611) publishHalf(update func()) {
	s.mu.Lock()
	update()
	if !s.hasD1 || !s.hasD2 {
		s.mu.Unlock()
		return
	}
	temp, pressure := s.prom.Compensate(s.d1, s.d2)
	reading := Reading{
		Temperature: temp,
		Pressure:    pressure,
		Altitude:    codec.Altitude(pressure, s.seaLevel),
	}
	s.computed = reading
	s.mu.Unlock()
	s.Publish(sensorhub.EventData, reading)
}

func (s *MS5611) SeaLevel() float64 { return s.seaLevel }

func (s *MS5611) Computed() (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computed, s.hasD1 && s.hasD2
}
