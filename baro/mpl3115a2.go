package baro

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/codec"
)

const (
	mpl3115a2RegStatus    = 0x00
	mpl3115a2RegPTDataCfg = 0x13
	mpl3115a2RegBarInMSB  = 0x14
	mpl3115a2RegBarInLSB  = 0x15
	mpl3115a2RegCtrl1     = 0x26
)

const (
	// barometer mode, 128x oversampling
	mpl3115a2CtrlBase   byte = 0x38
	mpl3115a2CtrlOST    byte = 0x02
	mpl3115a2CtrlActive byte = 0x01

	// data-ready event flags for pressure and temperature
	mpl3115a2DataCfg byte = 0x07
)

// one-shot conversion time at 128x oversampling
const mpl3115a2ConversionDelay = 550 * time.Millisecond

var MPL3115A2Spec = sensorhub.ChipSpec{
	Tag:       "mpl3115a2",
	Addresses: []byte{0x60},
	Registers: map[string]byte{
		"status":      mpl3115a2RegStatus,
		"pt_data_cfg": mpl3115a2RegPTDataCfg,
		"bar_in_msb":  mpl3115a2RegBarInMSB,
		"ctrl_reg1":   mpl3115a2RegCtrl1,
	},
}

// MPL3115A2 drives the NXP MPL3115A2. Elevation calibration is done on the
// chip itself: the driver averages a few one-shot pressure samples, derives
// the sea-level reference and writes it back into the BAR_IN registers
// before entering continuous operation.
type MPL3115A2 struct {
	*sensorhub.Runtime
	seaLevel float64
	mu       sync.Mutex
	computed Reading
	has      bool
}

func NewMPL3115A2(bus sensorhub.Bus) *MPL3115A2 {
	return &MPL3115A2{Runtime: sensorhub.NewRuntime(bus,
		sensorhub.EventData, sensorhub.EventCalibrated)}
}

func (s *MPL3115A2) Initialize(ctx context.Context, opts sensorhub.Options) error {
	stream, err := s.Begin(MPL3115A2Spec, opts)
	if err != nil {
		return err
	}
	addr := s.Address()
	if err := s.Bus().Configure(ctx, addr); err != nil {
		return fmt.Errorf("mpl3115a2: could not configure bus: %w", err)
	}
	if err := s.Bus().WriteReg(ctx, addr, mpl3115a2RegCtrl1, mpl3115a2CtrlBase); err != nil {
		return fmt.Errorf("mpl3115a2: could not configure barometer mode: %w", err)
	}
	if err := s.Bus().WriteReg(ctx, addr, mpl3115a2RegPTDataCfg, mpl3115a2DataCfg); err != nil {
		return fmt.Errorf("mpl3115a2: could not configure data events: %w", err)
	}

	s.seaLevel = StandardSeaLevelPa
	if opts.Elevation != nil {
		s.Transition(sensorhub.StateCalibrating)
		if err := s.calibrate(ctx, *opts.Elevation, opts.Delay); err != nil {
			return err
		}
		s.Publish(sensorhub.EventCalibrated, s.seaLevel)
	}

	if err := s.Bus().WriteReg(ctx, addr, mpl3115a2RegCtrl1, mpl3115a2CtrlBase|mpl3115a2CtrlActive); err != nil {
		return fmt.Errorf("mpl3115a2: could not enter active mode: %w", err)
	}
	err = s.Bus().ReadEvery(stream, addr, mpl3115a2RegStatus, 6, s.onData)
	if err != nil {
		return fmt.Errorf("mpl3115a2: could not start data stream: %w", err)
	}
	s.Transition(sensorhub.StateStreaming)
	return nil
}

// calibrate averages one-shot pressure samples at the known elevation and
// programs the derived sea-level reference into BAR_IN (2 Pa per LSB).
func (s *MPL3115A2) calibrate(ctx context.Context, elevation float64, override time.Duration) error {
	var sum float64
	for i := 0; i < calibrationSamples; i++ {
		pressure, _, err := s.oneShot(ctx, override)
		if err != nil {
			return fmt.Errorf("mpl3115a2: elevation calibration failed: %w", err)
		}
		sum += pressure
	}
	s.seaLevel = codec.SeaLevelPressure(sum/calibrationSamples, elevation)

	addr := s.Address()
	barIn := uint16(s.seaLevel / 2)
	if err := s.Bus().WriteReg(ctx, addr, mpl3115a2RegBarInMSB, byte(barIn>>8)); err != nil {
		return fmt.Errorf("mpl3115a2: could not write sea-level reference: %w", err)
	}
	if err := s.Bus().WriteReg(ctx, addr, mpl3115a2RegBarInLSB, byte(barIn)); err != nil {
		return fmt.Errorf("mpl3115a2: could not write sea-level reference: %w", err)
	}
	// settle the reference with one more conversion
	if _, _, err := s.oneShot(ctx, override); err != nil {
		return fmt.Errorf("mpl3115a2: elevation calibration failed: %w", err)
	}
	return nil
}

func (s *MPL3115A2) oneShot(ctx context.Context, override time.Duration) (pressurePa, tempC float64, err error) {
	delay := mpl3115a2ConversionDelay
	if override > 0 {
		delay = override
	}
	addr := s.Address()
	if err := s.Bus().WriteReg(ctx, addr, mpl3115a2RegCtrl1, mpl3115a2CtrlBase|mpl3115a2CtrlOST); err != nil {
		return 0, 0, fmt.Errorf("could not trigger conversion: %w", err)
	}
	if err := sensorhub.Settle(ctx, delay); err != nil {
		return 0, 0, err
	}
	buf := make([]byte, 6)
	if err := s.Bus().ReadFromReg(ctx, addr, mpl3115a2RegStatus, buf); err != nil {
		return 0, 0, fmt.Errorf("could not read conversion: %w", err)
	}
	pressurePa, tempC = mpl3115a2Decode(buf)
	return pressurePa, tempC, nil
}

// mpl3115a2Decode unpacks a status frame: 20-bit Q18.2 pressure in Pa and
// 12-bit Q8.4 temperature in degrees Celsius.
func mpl3115a2Decode(buf []byte) (pressurePa, tempC float64) {
	raw := (uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])) >> 4
	pressurePa = float64(raw) / 4
	tempC = float64(int8(buf[4])) + float64(buf[5]>>4)/16
	return pressurePa, tempC
}

func (s *MPL3115A2) onData(buf []byte) {
	pressure, temp := mpl3115a2Decode(buf)
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
}

func (s *MPL3115A2) SeaLevel() float64 { return s.seaLevel }

func (s *MPL3115A2) Computed() (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computed, s.has
}
