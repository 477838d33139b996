// Package codec converts raw chip register bytes into physical measurements:
// endian-aware integer combiners, the barometric altitude formulas and the
// per-chip datasheet compensation algorithms.
//
// Byte order is chip-specific and part of each chip's register contract;
// nothing here assumes a uniform ordering. A short buffer is a contract
// violation by the transport and panics instead of producing garbage values.
package codec

import "fmt"

func check(buf []byte, n int, what string) {
	if len(buf) < n {
		panic(fmt.Sprintf("codec: %s needs %d bytes, got %d", what, n, len(buf)))
	}
}

// Int16BE combines buf[0] (high) and buf[1] (low) into a signed 16-bit value.
func Int16BE(buf []byte) int16 {
	check(buf, 2, "int16be")
	return int16(uint16(buf[0])<<8 | uint16(buf[1]))
}

// Int16LE combines buf[0] (low) and buf[1] (high) into a signed 16-bit value.
func Int16LE(buf []byte) int16 {
	check(buf, 2, "int16le")
	return int16(uint16(buf[1])<<8 | uint16(buf[0]))
}

// Uint16BE combines buf[0] (high) and buf[1] (low) into an unsigned 16-bit value.
func Uint16BE(buf []byte) uint16 {
	check(buf, 2, "uint16be")
	return uint16(buf[0])<<8 | uint16(buf[1])
}

// Uint16LE combines buf[0] (low) and buf[1] (high) into an unsigned 16-bit value.
func Uint16LE(buf []byte) uint16 {
	check(buf, 2, "uint16le")
	return uint16(buf[1])<<8 | uint16(buf[0])
}

// Uint24BE combines three bytes, highest first, into an unsigned 24-bit value.
// Pressure ADC registers use this layout.
func Uint24BE(buf []byte) uint32 {
	check(buf, 3, "uint24be")
	return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
}
