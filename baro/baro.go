// Package baro implements the pressure/altitude chip drivers.
package baro

import (
	"time"

	"github.com/mklimuk/sensorhub"
)

// StandardSeaLevelPa is the ISA reference used when no elevation is given.
const StandardSeaLevelPa = 101325.0

const defaultCycleFreq = 100 * time.Millisecond

// conversions averaged when deriving the sea-level reference
const calibrationSamples = 4

// Reading is the computed record shared by every pressure chip.
type Reading struct {
	Temperature float64
	Pressure    float64
	Altitude    float64
}

func cycleFreq(opts sensorhub.Options) time.Duration {
	if opts.Freq > 0 {
		return opts.Freq
	}
	return defaultCycleFreq
}
