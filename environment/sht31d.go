package environment

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/codec"
)

// Single-shot, high repeatability, clock stretching enabled (Big Endian on
// the wire).
const sht31dCmdMeasureHigh uint16 = 0x2C06

const (
	sht31dMeasureDelay = 16 * time.Millisecond
	sht31dDefaultFreq  = 100 * time.Millisecond
)

var SHT31DSpec = sensorhub.ChipSpec{
	Tag:       "sht31d",
	Addresses: []byte{0x44, 0x45},
}

type SHT31DData struct {
	Temperature float64
	Humidity    float64
}

// SHT31D drives the Sensirion SHT31-D. Unlike the register-polled chips it
// runs a command cycle: write the measurement command, wait for the
// conversion, then read six bytes holding both words with their CRCs.
type SHT31D struct {
	*sensorhub.Runtime
	mu       sync.Mutex
	computed SHT31DData
	has      bool
	rejected int
}

func NewSHT31D(bus sensorhub.Bus) *SHT31D {
	return &SHT31D{Runtime: sensorhub.NewRuntime(bus, sensorhub.EventData)}
}

func (s *SHT31D) Initialize(ctx context.Context, opts sensorhub.Options) error {
	stream, err := s.Begin(SHT31DSpec, opts)
	if err != nil {
		return err
	}
	if err := s.Bus().Configure(ctx, s.Address()); err != nil {
		return fmt.Errorf("sht31d: could not configure bus: %w", err)
	}
	settle := sht31dMeasureDelay
	if opts.Delay > 0 {
		settle = opts.Delay
	}
	freq := opts.Freq
	if freq <= 0 {
		freq = sht31dDefaultFreq
	}
	go s.cycle(stream, settle, freq)
	s.Transition(sensorhub.StateStreaming)
	return nil
}

func (s *SHT31D) cycle(ctx context.Context, settle, freq time.Duration) {
	var cmd [2]byte
	binary.BigEndian.PutUint16(cmd[:], sht31dCmdMeasureHigh)
	buf := make([]byte, 6)
	for {
		if err := s.Bus().WriteToAddr(ctx, s.Address(), cmd[:]); err != nil {
			slog.Debug("sht31d: measure command failed, stopping cycle", "error", err)
			return
		}
		if err := sensorhub.Settle(ctx, settle); err != nil {
			return
		}
		if err := s.Bus().ReadFromAddr(ctx, s.Address(), buf); err != nil {
			slog.Debug("sht31d: read failed, stopping cycle", "error", err)
			return
		}
		if shtCRC8(buf[0:2]) != buf[2] || shtCRC8(buf[3:5]) != buf[5] {
			s.mu.Lock()
			s.rejected++
			rejected := s.rejected
			s.mu.Unlock()
			slog.Warn("sht31d: CRC mismatch, skipping sample", "rejected", rejected)
		} else {
			rawT := codec.Uint16BE(buf[0:2])
			rawRH := codec.Uint16BE(buf[3:5])
			s.mu.Lock()
			s.computed.Temperature = -45 + 175*float64(rawT)/65535
			s.computed.Humidity = 100 * float64(rawRH) / 65535
			s.has = true
			snapshot := s.computed
			s.mu.Unlock()
			s.Publish(sensorhub.EventData, snapshot)
		}
		if err := sensorhub.Settle(ctx, freq); err != nil {
			return
		}
	}
}

func (s *SHT31D) Computed() (SHT31DData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computed, s.has
}

// Rejected counts samples dropped on CRC mismatch.
func (s *SHT31D) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

// Sensirion CRC-8, polynomial 0x31, init 0xFF.
func shtCRC8(data []byte) byte {
	var crc byte = 0xFF
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if (crc & 0x80) != 0 {
				crc = (crc << 1) ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
