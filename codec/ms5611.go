package codec

// MS5611Prom holds the six factory calibration words read from PROM during
// initialization. Immutable after the read.
type MS5611Prom struct {
	C1, C2, C3, C4, C5, C6 uint16
}

// Compensate converts the raw pressure (D1) and temperature (D2) ADC values
// into degrees Celsius and pascals, applying the datasheet first-order
// algorithm plus the second-order correction below 20 degrees and the extra
// terms below -15 degrees.
func (p MS5611Prom) Compensate(d1, d2 uint32) (tempC, pressurePa float64) {
	dT := int64(d2) - int64(p.C5)*256
	temp := int64(2000) + dT*int64(p.C6)/8388608

	off := int64(p.C2)*65536 + int64(p.C4)*dT/128
	sens := int64(p.C1)*32768 + int64(p.C3)*dT/256

	if temp < 2000 {
		t2 := (dT * dT) >> 31
		tm := temp - 2000
		off2 := 5 * tm * tm / 2
		sens2 := off2 / 2
		if temp < -1500 {
			tp := temp + 1500
			off2 += 7 * tp * tp
			sens2 += 11 * tp * tp / 2
		}
		temp -= t2
		off -= off2
		sens -= sens2
	}

	// 1 LSB = 0.01 mbar = 1 Pa
	pressure := (int64(d1)*sens/2097152 - off) / 32768
	return float64(temp) / 100, float64(pressure)
}
