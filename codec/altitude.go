package codec

import "math"

// Altitude converts a compensated pressure (Pa) and a sea-level reference
// (Pa) into meters using the international barometric formula.
func Altitude(pressure, seaLevel float64) float64 {
	return 44330 * (1 - math.Pow(pressure/seaLevel, 1/5.255))
}

// SeaLevelPressure derives the sea-level reference (Pa) from a compensated
// pressure (Pa) measured at a known elevation (m). Inverse of Altitude.
func SeaLevelPressure(pressure, elevation float64) float64 {
	return pressure / math.Pow(1-elevation*0.0000225577, 5.255877)
}
