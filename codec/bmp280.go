package codec

// BMP280Calibration holds the trimming coefficients read once from the
// chip's NVM. Immutable after parsing.
type BMP280Calibration struct {
	T1         uint16
	T2, T3     int16
	P1         uint16
	P2, P3, P4 int16
	P5, P6, P7 int16
	P8, P9     int16
}

// ParseBMP280Calibration decodes the 24-byte little-endian coefficient block
// starting at register 0x88.
func ParseBMP280Calibration(buf []byte) BMP280Calibration {
	check(buf, 24, "bmp280 calibration")
	return BMP280Calibration{
		T1: Uint16LE(buf[0:2]),
		T2: Int16LE(buf[2:4]),
		T3: Int16LE(buf[4:6]),
		P1: Uint16LE(buf[6:8]),
		P2: Int16LE(buf[8:10]),
		P3: Int16LE(buf[10:12]),
		P4: Int16LE(buf[12:14]),
		P5: Int16LE(buf[14:16]),
		P6: Int16LE(buf[16:18]),
		P7: Int16LE(buf[18:20]),
		P8: Int16LE(buf[20:22]),
		P9: Int16LE(buf[22:24]),
	}
}

// TFine computes the fine temperature intermediate the pressure compensation
// is threaded through.
func (c BMP280Calibration) TFine(adcT int32) int32 {
	var1 := (((adcT >> 3) - (int32(c.T1) << 1)) * int32(c.T2)) >> 11
	var2 := (((((adcT >> 4) - int32(c.T1)) * ((adcT >> 4) - int32(c.T1))) >> 12) * int32(c.T3)) >> 14
	return var1 + var2
}

// Temperature converts the fine intermediate to degrees Celsius.
func (c BMP280Calibration) Temperature(tFine int32) float64 {
	return float64((tFine*5+128)>>8) / 100
}

// Pressure applies the datasheet 64-bit fixed-point compensation and
// returns pascals. Returns 0 when the divisor degenerates (P1 == 0 on a
// blank chip), matching the reference implementation.
func (c BMP280Calibration) Pressure(adcP, tFine int32) float64 {
	var1 := int64(tFine) - 128000
	var2 := var1 * var1 * int64(c.P6)
	var2 += (var1 * int64(c.P5)) << 17
	var2 += int64(c.P4) << 35
	var1 = ((var1 * var1 * int64(c.P3)) >> 8) + ((var1 * int64(c.P2)) << 12)
	var1 = ((int64(1) << 47) + var1) * int64(c.P1) >> 33
	if var1 == 0 {
		return 0
	}
	p := int64(1048576) - int64(adcP)
	p = ((p<<31 - var2) * 3125) / var1
	var1 = (int64(c.P9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.P8) * p) >> 19
	p = ((p + var1 + var2) >> 8) + (int64(c.P7) << 4)
	// Q24.8 pascals
	return float64(p) / 256
}
