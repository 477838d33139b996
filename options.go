package sensorhub

import "time"

// Options is the construction surface shared by all chip drivers. Every
// field is optional; a zero value means "use the chip default".
type Options struct {
	// Address overrides the chip's default bus address.
	Address byte
	// Delay, when set, replaces the chip's datasheet settle delays between
	// a conversion trigger and reading back the settled value.
	Delay time.Duration
	// Elevation is the reference altitude in meters used to derive a
	// sea-level pressure once during initialization. Nil means raw
	// pressure mode: no altitude correction is performed.
	Elevation *float64
	// Mode selects the oversampling entry from the chip's precision/latency
	// delay table.
	Mode int
	// CalibrationMask defines which calibration subsystems must report
	// fully calibrated before a fusion chip is considered ready (zero means
	// chip default).
	CalibrationMask byte
	// AxisMap and AxisSign remap the fusion chip axes (zero means chip
	// default).
	AxisMap  byte
	AxisSign byte
	// EnableExternalCrystal switches orientation-fusion chips to their
	// external oscillator.
	EnableExternalCrystal bool
	// Freq is the sampling cadence: cycle-driven chips use it as the pause
	// between measurement cycles, facets as their sampling period.
	Freq time.Duration
}

// Meters points opts.Elevation at a literal value.
func Meters(m float64) *float64 { return &m }
