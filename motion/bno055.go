package motion

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
	bno055RegAccelData  = 0x08
	bno055RegEulerData  = 0x1A
	bno055RegTemp       = 0x34
	bno055RegCalibStat  = 0x35
	bno055RegOprMode    = 0x3D
	bno055RegPwrMode    = 0x3E
	bno055RegSysTrigger = 0x3F
	bno055RegAxisMap    = 0x41
	bno055RegAxisSign   = 0x42
	bno055RegPage       = 0x07
)

const (
	bno055ModeConfig byte = 0x00
	bno055ModeNDOF   byte = 0x0C

	bno055TriggerReset      byte = 0x20
	bno055TriggerExtCrystal byte = 0x80
)

const (
	bno055ResetDelay = 650 * time.Millisecond
	bno055ModeDelay  = 10 * time.Millisecond

	// fully calibrated system status bits of CALIB_STAT
	bno055DefaultCalibrationMask byte = 0xC0
	bno055DefaultAxisMap         byte = 0x24
)

var BNO055Spec = sensorhub.ChipSpec{
	Tag:       "bno055",
	Addresses: []byte{0x28, 0x29},
	Registers: map[string]byte{
		"accel_data":  bno055RegAccelData,
		"euler_data":  bno055RegEulerData,
		"temp":        bno055RegTemp,
		"calib_stat":  bno055RegCalibStat,
		"opr_mode":    bno055RegOprMode,
		"sys_trigger": bno055RegSysTrigger,
	},
}

type Euler struct {
	Heading float64
	Roll    float64
	Pitch   float64
}

type Quaternion struct {
	W float64
	X float64
	Y float64
	Z float64
}

type BNO055Data struct {
	Calibration    byte
	Calibrated     bool
	Temperature    float64
	HasStatus      bool
	Accel          Triplet
	Magnetometer   Triplet
	Gyro           Triplet
	HasMotion      bool
	Euler          Euler
	Quaternion     Quaternion
	HasOrientation bool
}

// BNO055 drives the Bosch BNO055 absolute orientation sensor in NDOF fusion
// mode. After the configuration sequence the driver only polls CALIB_STAT,
// publishing a "calibration" event on every observed change; once the fusion
// engine satisfies the calibration mask it emits "calibrated" exactly once
// and starts the three measurement streams.
type BNO055 struct {
	*sensorhub.Runtime
	mask       byte
	mu         sync.Mutex
	computed   BNO055Data
	seen       bool
	calibrated bool
}

func NewBNO055(bus sensorhub.Bus) *BNO055 {
	return &BNO055{Runtime: sensorhub.NewRuntime(bus,
		sensorhub.EventData, sensorhub.EventCalibration, sensorhub.EventCalibrated)}
}

func (s *BNO055) Initialize(ctx context.Context, opts sensorhub.Options) error {
	stream, err := s.Begin(BNO055Spec, opts)
	if err != nil {
		return err
	}
	if err := s.Bus().Configure(ctx, s.Address()); err != nil {
		return fmt.Errorf("bno055: could not configure bus: %w", err)
	}
	s.mask = bno055DefaultCalibrationMask
	if opts.CalibrationMask != 0 {
		s.mask = opts.CalibrationMask
	}
	if err := s.configure(ctx, opts); err != nil {
		return err
	}
	s.Transition(sensorhub.StateCalibrating)

	err = s.Bus().ReadEvery(stream, s.Address(), bno055RegCalibStat, 1, func(buf []byte) {
		s.onCalibration(stream, buf[0])
	})
	if err != nil {
		return fmt.Errorf("bno055: could not start calibration poll: %w", err)
	}
	return nil
}

func (s *BNO055) configure(ctx context.Context, opts sensorhub.Options) error {
	resetDelay := bno055ResetDelay
	modeDelay := bno055ModeDelay
	if opts.Delay > 0 {
		resetDelay = opts.Delay
		modeDelay = opts.Delay
	}
	addr := s.Address()
	if err := s.Bus().WriteReg(ctx, addr, bno055RegPage, 0x00); err != nil {
		return fmt.Errorf("bno055: could not select register page: %w", err)
	}
	if err := s.Bus().WriteReg(ctx, addr, bno055RegOprMode, bno055ModeConfig); err != nil {
		return fmt.Errorf("bno055: could not enter config mode: %w", err)
	}
	if err := s.Bus().WriteReg(ctx, addr, bno055RegSysTrigger, bno055TriggerReset); err != nil {
		return fmt.Errorf("bno055: could not reset chip: %w", err)
	}
	if err := sensorhub.Settle(ctx, resetDelay); err != nil {
		return fmt.Errorf("bno055: interrupted while waiting for reset: %w", err)
	}
	if err := s.Bus().WriteReg(ctx, addr, bno055RegPwrMode, 0x00); err != nil {
		return fmt.Errorf("bno055: could not set power mode: %w", err)
	}
	axisMap := bno055DefaultAxisMap
	if opts.AxisMap != 0 {
		axisMap = opts.AxisMap
	}
	if err := s.Bus().WriteReg(ctx, addr, bno055RegAxisMap, axisMap); err != nil {
		return fmt.Errorf("bno055: could not set axis map: %w", err)
	}
	if err := s.Bus().WriteReg(ctx, addr, bno055RegAxisSign, opts.AxisSign); err != nil {
		return fmt.Errorf("bno055: could not set axis sign: %w", err)
	}
	var trigger byte
	if opts.EnableExternalCrystal {
		trigger = bno055TriggerExtCrystal
	}
	if err := s.Bus().WriteReg(ctx, addr, bno055RegSysTrigger, trigger); err != nil {
		return fmt.Errorf("bno055: could not set clock source: %w", err)
	}
	if err := sensorhub.Settle(ctx, modeDelay); err != nil {
		return fmt.Errorf("bno055: interrupted while waiting for clock source: %w", err)
	}
	if err := s.Bus().WriteReg(ctx, addr, bno055RegOprMode, bno055ModeNDOF); err != nil {
		return fmt.Errorf("bno055: could not enter fusion mode: %w", err)
	}
	if err := sensorhub.Settle(ctx, modeDelay); err != nil {
		return fmt.Errorf("bno055: interrupted while waiting for fusion mode: %w", err)
	}
	return nil
}

func (s *BNO055) onCalibration(stream context.Context, calib byte) {
	changed, justCalibrated := s.updateCalibration(calib)
	if changed {
		s.Publish(sensorhub.EventCalibration, calib)
	}
	if justCalibrated {
		s.Transition(sensorhub.StateStreaming)
		s.Publish(sensorhub.EventCalibrated, calib)
		s.startStreams(stream)
	}
}

// updateCalibration records the status byte and reports whether it changed
// and whether the mask was satisfied for the first time.
func (s *BNO055) updateCalibration(calib byte) (changed, justCalibrated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed = !s.seen || s.computed.Calibration != calib
	s.seen = true
	s.computed.Calibration = calib
	if !s.calibrated && calib&s.mask == s.mask {
		s.calibrated = true
		s.computed.Calibrated = true
		justCalibrated = true
	}
	return changed, justCalibrated
}

func (s *BNO055) startStreams(stream context.Context) {
	addr := s.Address()
	if err := s.Bus().ReadEvery(stream, addr, bno055RegTemp, 2, s.onStatus); err != nil {
		slog.Debug("bno055: could not start status stream", "error", err)
	}
	if err := s.Bus().ReadEvery(stream, addr, bno055RegAccelData, 18, s.onMotion); err != nil {
		slog.Debug("bno055: could not start motion stream", "error", err)
	}
	if err := s.Bus().ReadEvery(stream, addr, bno055RegEulerData, 14, s.onOrientation); err != nil {
		slog.Debug("bno055: could not start orientation stream", "error", err)
	}
}

// onStatus handles the combined temperature/calibration frame. Its
// calibration byte goes through the same deduplication as the poll.
func (s *BNO055) onStatus(buf []byte) {
	temp := float64(int8(buf[0]))
	calib := buf[1]

	changed, _ := s.updateCalibration(calib)
	s.mu.Lock()
	s.computed.Temperature = temp
	s.computed.HasStatus = true
	snapshot := s.computed
	s.mu.Unlock()

	if changed {
		s.Publish(sensorhub.EventCalibration, calib)
	}
	s.Publish(sensorhub.EventData, snapshot)
}

func (s *BNO055) onMotion(buf []byte) {
	accel := Triplet{
		X: float64(codec.Int16LE(buf[0:2])) / 100,
		Y: float64(codec.Int16LE(buf[2:4])) / 100,
		Z: float64(codec.Int16LE(buf[4:6])) / 100,
	}
	mag := Triplet{
		X: float64(codec.Int16LE(buf[6:8])) / 16,
		Y: float64(codec.Int16LE(buf[8:10])) / 16,
		Z: float64(codec.Int16LE(buf[10:12])) / 16,
	}
	gyro := Triplet{
		X: float64(codec.Int16LE(buf[12:14])) / 16,
		Y: float64(codec.Int16LE(buf[14:16])) / 16,
		Z: float64(codec.Int16LE(buf[16:18])) / 16,
	}
	s.mu.Lock()
	s.computed.Accel = accel
	s.computed.Magnetometer = mag
	s.computed.Gyro = gyro
	s.computed.HasMotion = true
	snapshot := s.computed
	s.mu.Unlock()
	s.Publish(sensorhub.EventData, snapshot)
}

func (s *BNO055) onOrientation(buf []byte) {
	euler := Euler{
		Heading: float64(codec.Int16LE(buf[0:2])) / 16,
		Roll:    float64(codec.Int16LE(buf[2:4])) / 16,
		Pitch:   float64(codec.Int16LE(buf[4:6])) / 16,
	}
	quat := Quaternion{
		W: float64(codec.Int16LE(buf[6:8])) / 16384,
		X: float64(codec.Int16LE(buf[8:10])) / 16384,
		Y: float64(codec.Int16LE(buf[10:12])) / 16384,
		Z: float64(codec.Int16LE(buf[12:14])) / 16384,
	}
	s.mu.Lock()
	s.computed.Euler = euler
	s.computed.Quaternion = quat
	s.computed.HasOrientation = true
	snapshot := s.computed
	s.mu.Unlock()
	s.Publish(sensorhub.EventData, snapshot)
}

func (s *BNO055) Computed() BNO055Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computed
}
