package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Coefficients and raw readings from the Bosch BMP180 datasheet worked
// example (section 3.5); expected outputs are the vendor's published values.
func TestBMP180_DatasheetExample(t *testing.T) {
	cal := BMP180Calibration{
		AC1: 408, AC2: -72, AC3: -14383,
		AC4: 32741, AC5: 32757, AC6: 23153,
		B1: 6190, B2: 4,
		MB: -32768, MC: -8711, MD: 2868,
	}
	b5 := cal.B5(27898)
	assert.InDelta(t, 15.0, cal.Temperature(b5), 0.01)
	assert.Equal(t, int32(69964), cal.Pressure(23843, b5, 0))
}

func TestBMP180_ParseCalibration(t *testing.T) {
	buf := []byte{
		0x01, 0x98, // AC1 = 408
		0xFF, 0xB8, // AC2 = -72
		0xC7, 0xD1, // AC3 = -14383
		0x7F, 0xE5, // AC4 = 32741
		0x7F, 0xF5, // AC5 = 32757
		0x5A, 0x71, // AC6 = 23153
		0x18, 0x2E, // B1 = 6190
		0x00, 0x04, // B2 = 4
		0x80, 0x00, // MB = -32768
		0xDD, 0xF9, // MC = -8711
		0x0B, 0x34, // MD = 2868
	}
	cal := ParseBMP180Calibration(buf)
	assert.Equal(t, int16(408), cal.AC1)
	assert.Equal(t, int16(-72), cal.AC2)
	assert.Equal(t, uint16(23153), cal.AC6)
	assert.Equal(t, int16(-8711), cal.MC)
	assert.Panics(t, func() { ParseBMP180Calibration(buf[:21]) })
}

// Raw values and coefficients from the Bosch BMP280 datasheet worked example.
func TestBMP280_DatasheetExample(t *testing.T) {
	cal := BMP280Calibration{
		T1: 27504, T2: 26435, T3: -1000,
		P1: 36477, P2: -10685, P3: 3024,
		P4: 2855, P5: 140, P6: -7,
		P7: 15500, P8: -14600, P9: 6000,
	}
	tFine := cal.TFine(519888)
	assert.InDelta(t, 25.08, cal.Temperature(tFine), 0.01)
	assert.InDelta(t, 96386.2, cal.Pressure(415148, tFine), 0.5)
}

func TestBMP280_BlankChip(t *testing.T) {
	var cal BMP280Calibration
	assert.Equal(t, 0.0, cal.Pressure(415148, 0))
}

// Values from the MS5611-01BA03 datasheet conversion example:
// 20.07 degrees and 1000.09 mbar.
func TestMS5611_DatasheetExample(t *testing.T) {
	prom := MS5611Prom{C1: 40127, C2: 36924, C3: 23317, C4: 23282, C5: 33464, C6: 28312}
	temp, pressure := prom.Compensate(9085466, 8569150)
	assert.InDelta(t, 20.07, temp, 0.01)
	assert.InDelta(t, 100009, pressure, 1)
}

// Below 20 degrees the second-order correction must pull the result down
// relative to the first-order-only value.
func TestMS5611_SecondOrderKicksIn(t *testing.T) {
	prom := MS5611Prom{C1: 40127, C2: 36924, C3: 23317, C4: 23282, C5: 33464, C6: 28312}
	// d2 below the 20 degree threshold
	temp, _ := prom.Compensate(9085466, 8469150)
	assert.Less(t, temp, 20.0)
}
