// Package motion implements the inertial measurement chip drivers.
package motion

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/codec"
)

// Triplet is one three-axis reading.
type Triplet struct {
	X float64
	Y float64
	Z float64
}

const (
	mpu6050RegPwrMgmt = 0x6B
	mpu6050RegData    = 0x3B
)

// Scale factors for the power-on full-scale ranges (±2g, ±250°/s).
const (
	mpu6050AccelScale = 16384.0
	mpu6050GyroScale  = 131.0
)

var MPU6050Spec = sensorhub.ChipSpec{
	Tag:       "mpu6050",
	Addresses: []byte{0x68, 0x69},
	Registers: map[string]byte{
		"pwr_mgmt": mpu6050RegPwrMgmt,
		"data":     mpu6050RegData,
	},
}

type MPU6050Data struct {
	Accel       Triplet
	Temperature float64
	Gyro        Triplet
}

// MPU6050 drives the InvenSense MPU-6050: a single wake-up write, then one
// repeating burst read covering accelerometer, die temperature and gyro.
type MPU6050 struct {
	*sensorhub.Runtime
	mu       sync.Mutex
	computed MPU6050Data
	has      bool
}

func NewMPU6050(bus sensorhub.Bus) *MPU6050 {
	return &MPU6050{Runtime: sensorhub.NewRuntime(bus, sensorhub.EventData)}
}

func (s *MPU6050) Initialize(ctx context.Context, opts sensorhub.Options) error {
	stream, err := s.Begin(MPU6050Spec, opts)
	if err != nil {
		return err
	}
	if err := s.Bus().Configure(ctx, s.Address()); err != nil {
		return fmt.Errorf("mpu6050: could not configure bus: %w", err)
	}
	// clear the SLEEP bit, everything else stays at power-on defaults
	if err := s.Bus().WriteReg(ctx, s.Address(), mpu6050RegPwrMgmt, 0x00); err != nil {
		return fmt.Errorf("mpu6050: could not wake chip: %w", err)
	}
	err = s.Bus().ReadEvery(stream, s.Address(), mpu6050RegData, 14, func(buf []byte) {
		computed := MPU6050Data{
			Accel: Triplet{
				X: float64(codec.Int16BE(buf[0:2])) / mpu6050AccelScale,
				Y: float64(codec.Int16BE(buf[2:4])) / mpu6050AccelScale,
				Z: float64(codec.Int16BE(buf[4:6])) / mpu6050AccelScale,
			},
			Temperature: float64(codec.Int16BE(buf[6:8]))/340 + 36.53,
			Gyro: Triplet{
				X: float64(codec.Int16BE(buf[8:10])) / mpu6050GyroScale,
				Y: float64(codec.Int16BE(buf[10:12])) / mpu6050GyroScale,
				Z: float64(codec.Int16BE(buf[12:14])) / mpu6050GyroScale,
			},
		}
		s.mu.Lock()
		s.computed = computed
		s.has = true
		s.mu.Unlock()
		s.Publish(sensorhub.EventData, computed)
	})
	if err != nil {
		return fmt.Errorf("mpu6050: could not start data stream: %w", err)
	}
	s.Transition(sensorhub.StateStreaming)
	return nil
}

func (s *MPU6050) Computed() (MPU6050Data, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computed, s.has
}
