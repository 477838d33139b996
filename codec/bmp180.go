package codec

// BMP180Calibration holds the eleven EEPROM coefficients read once during
// initialization. Immutable after parsing.
type BMP180Calibration struct {
	AC1, AC2, AC3 int16
	AC4, AC5, AC6 uint16
	B1, B2        int16
	MB, MC, MD    int16
}

// ParseBMP180Calibration decodes the 22-byte big-endian EEPROM block
// starting at register 0xAA.
func ParseBMP180Calibration(buf []byte) BMP180Calibration {
	check(buf, 22, "bmp180 calibration")
	return BMP180Calibration{
		AC1: Int16BE(buf[0:2]),
		AC2: Int16BE(buf[2:4]),
		AC3: Int16BE(buf[4:6]),
		AC4: Uint16BE(buf[6:8]),
		AC5: Uint16BE(buf[8:10]),
		AC6: Uint16BE(buf[10:12]),
		B1:  Int16BE(buf[12:14]),
		B2:  Int16BE(buf[14:16]),
		MB:  Int16BE(buf[16:18]),
		MC:  Int16BE(buf[18:20]),
		MD:  Int16BE(buf[20:22]),
	}
}

// B5 computes the shared temperature intermediate from the uncompensated
// temperature reading. Both Temperature and Pressure consume it; computing
// it once per temperature half-cycle keeps the pairing explicit.
func (c BMP180Calibration) B5(ut int32) int32 {
	x1 := ((ut - int32(c.AC6)) * int32(c.AC5)) >> 15
	x2 := (int32(c.MC) << 11) / (x1 + int32(c.MD))
	return x1 + x2
}

// Temperature converts the B5 intermediate to degrees Celsius.
func (c BMP180Calibration) Temperature(b5 int32) float64 {
	return float64((b5+8)>>4) / 10
}

// Pressure applies the datasheet two-stage integer compensation to the
// uncompensated pressure reading and returns pascals. oss is the
// oversampling setting (0..3); the B7 magnitude threshold selects between
// the two divisor strategies exactly as the datasheet specifies.
func (c BMP180Calibration) Pressure(up, b5 int32, oss uint) int32 {
	b6 := b5 - 4000
	x1 := (int32(c.B2) * ((b6 * b6) >> 12)) >> 11
	x2 := (int32(c.AC2) * b6) >> 11
	x3 := x1 + x2
	b3 := (((int32(c.AC1)*4 + x3) << oss) + 2) >> 2

	x1 = (int32(c.AC3) * b6) >> 13
	x2 = (int32(c.B1) * ((b6 * b6) >> 12)) >> 16
	x3 = ((x1 + x2) + 2) >> 2
	b4 := (uint32(c.AC4) * uint32(x3+32768)) >> 15
	b7 := uint32(up-b3) * (50000 >> oss)

	var p int32
	if b7 < 0x80000000 {
		p = int32((b7 * 2) / b4)
	} else {
		p = int32(b7/b4) * 2
	}
	x1 = (p >> 8) * (p >> 8)
	x1 = (x1 * 3038) >> 16
	x2 = (-7357 * p) >> 16
	return p + ((x1 + x2 + 3791) >> 4)
}
