// wire protocol codec
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package protocol implements the wire codec shared by the acquisition and
// network goroutines: a 7-byte header followed by a type-specific payload.
// It performs no I/O; building and parsing operate purely on byte slices
// supplied by the caller.
package protocol

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
)

// Magic identifies an application packet; a received datagram that does not
// start with these two bytes (little-endian) is not ours.
const Magic uint16 = 0xDA7A

// HeaderSize is the fixed length, in bytes, of every packet header.
const HeaderSize = 7

// MaxPacketSize is one Ethernet MTU minus UDP/IP overhead.
const MaxPacketSize = 1472

// MaxDataPayload bounds the body of a DATA packet.
const MaxDataPayload = 1400

// Message types.
const (
	TypePing   byte = 0x01
	TypePong   byte = 0x02
	TypeData   byte = 0x10
	TypeCmd    byte = 0x20
	TypeStatus byte = 0x30
)

// Command codes carried in a CMD payload.
const (
	CmdStartAcq  byte = 0x01
	CmdStopAcq   byte = 0x02
	CmdGetStatus byte = 0x03
	CmdConfigure byte = 0x04
)

// Configure parameter-type tags.
const (
	ParamThresholdPercent byte = 0
	ParamThresholdMv      byte = 1
	ParamBatchSize        byte = 2
	ParamChannel          byte = 3
	ParamResetSequence    byte = 4
	ParamLogLevel         byte = 5
)

// Sentinel errors, returned or wrapped by Build/Parse. They are compared
// with errors.Is, matching the error taxonomy of the codec contract.
var (
	ErrInvalidArgument = errors.New("protocol: invalid argument")
	ErrBufferTooSmall  = errors.New("protocol: buffer too small")
	ErrInvalidMessage  = errors.New("protocol: invalid message")
)

// Header is the decoded 7-byte packet header.
type Header struct {
	Type     byte
	Sequence uint16
	Length   uint16
}

// sequence is the shared outbound sequence counter. Builders on both the
// network and acquisition goroutines advance it; it is a 16-bit value so a
// single atomic word covers it without a mutex.
var sequence atomic.Uint32

// NextSequence returns the counter's current value without advancing it.
func NextSequence() uint16 {
	return uint16(sequence.Load())
}

// ResetSequence sets the counter back to zero, honoring CONFIGURE's
// reset-sequence parameter.
func ResetSequence() {
	sequence.Store(0)
}

// advance increments the sequence counter by one, wrapping at 65536, and
// returns the value that was just consumed by the packet being built.
func advance() uint16 {
	for {
		cur := sequence.Load()
		next := (cur + 1) % 65536
		if sequence.CompareAndSwap(cur, next) {
			return uint16(cur)
		}
	}
}

func putHeader(buf []byte, typ byte, seq uint16, payloadLen int) {
	binary.LittleEndian.PutUint16(buf[0:2], Magic)
	buf[2] = typ
	binary.LittleEndian.PutUint16(buf[3:5], seq)
	binary.LittleEndian.PutUint16(buf[5:7], uint16(payloadLen))
}

// BuildPing writes a PING packet into buf and returns its length.
func BuildPing(buf []byte) (int, error) {
	return buildEmpty(buf, TypePing)
}

// BuildPong writes a PONG packet into buf and returns its length.
func BuildPong(buf []byte) (int, error) {
	return buildEmpty(buf, TypePong)
}

func buildEmpty(buf []byte, typ byte) (int, error) {
	if len(buf) < HeaderSize {
		return 0, ErrBufferTooSmall
	}
	seq := advance()
	putHeader(buf, typ, seq, 0)
	return HeaderSize, nil
}

// BuildData writes a DATA packet carrying the given channel and samples
// (already threshold-filtered, in acquisition order) into buf.
func BuildData(buf []byte, channel byte, samples []uint16) (int, error) {
	n := len(samples)
	payloadLen := 4 + 2*n
	if payloadLen > MaxDataPayload {
		return 0, ErrInvalidArgument
	}
	total := HeaderSize + payloadLen
	if len(buf) < total {
		return 0, ErrBufferTooSmall
	}

	seq := advance()
	putHeader(buf, TypeData, seq, payloadLen)

	p := buf[HeaderSize:total]
	p[0] = channel
	p[1] = 0
	binary.LittleEndian.PutUint16(p[2:4], uint16(n))
	off := 4
	for _, s := range samples {
		binary.LittleEndian.PutUint16(p[off:off+2], s)
		off += 2
	}
	return total, nil
}

// BuildCommand writes a CMD packet into buf.
func BuildCommand(buf []byte, cmd byte, paramType byte, param uint16) (int, error) {
	const payloadLen = 4
	total := HeaderSize + payloadLen
	if len(buf) < total {
		return 0, ErrBufferTooSmall
	}
	seq := advance()
	putHeader(buf, TypeCmd, seq, payloadLen)
	p := buf[HeaderSize:total]
	p[0] = cmd
	p[1] = paramType
	binary.LittleEndian.PutUint16(p[2:4], param)
	return total, nil
}

// StatusPayload is the content of a STATUS reply.
type StatusPayload struct {
	Acquiring      bool
	Channel        byte
	ThresholdMv    uint16
	UptimeSeconds  uint32
	SamplesSent    uint32
}

// BuildStatus writes a STATUS packet into buf.
func BuildStatus(buf []byte, s StatusPayload) (int, error) {
	const payloadLen = 1 + 1 + 2 + 4 + 4
	total := HeaderSize + payloadLen
	if len(buf) < total {
		return 0, ErrBufferTooSmall
	}
	seq := advance()
	putHeader(buf, TypeStatus, seq, payloadLen)
	p := buf[HeaderSize:total]
	if s.Acquiring {
		p[0] = 1
	} else {
		p[0] = 0
	}
	p[1] = s.Channel
	binary.LittleEndian.PutUint16(p[2:4], s.ThresholdMv)
	binary.LittleEndian.PutUint32(p[4:8], s.UptimeSeconds)
	binary.LittleEndian.PutUint32(p[8:12], s.SamplesSent)
	return total, nil
}

// Parse decodes a packet header from b and returns it along with a view
// into the payload region. It performs only framing validation; semantic
// validation of the payload is the caller's responsibility. Trailing bytes
// beyond the declared payload length are silently ignored.
func Parse(b []byte) (Header, []byte, error) {
	if len(b) < HeaderSize {
		return Header{}, nil, ErrInvalidMessage
	}
	magic := binary.LittleEndian.Uint16(b[0:2])
	if magic != Magic {
		return Header{}, nil, ErrInvalidMessage
	}
	h := Header{
		Type:     b[2],
		Sequence: binary.LittleEndian.Uint16(b[3:5]),
		Length:   binary.LittleEndian.Uint16(b[5:7]),
	}
	end := HeaderSize + int(h.Length)
	if len(b) < end {
		return Header{}, nil, ErrInvalidMessage
	}
	return h, b[HeaderSize:end], nil
}

// ParseData decodes a DATA payload (as returned by Parse) into a channel
// and sample slice. Callers must have checked Header.Type == TypeData.
func ParseData(payload []byte) (channel byte, samples []uint16, err error) {
	if len(payload) < 4 {
		return 0, nil, ErrInvalidMessage
	}
	channel = payload[0]
	n := int(binary.LittleEndian.Uint16(payload[2:4]))
	need := 4 + 2*n
	if len(payload) < need {
		return 0, nil, ErrInvalidMessage
	}
	samples = make([]uint16, n)
	off := 4
	for i := 0; i < n; i++ {
		samples[i] = binary.LittleEndian.Uint16(payload[off : off+2])
		off += 2
	}
	return channel, samples, nil
}

// ParseCommand decodes a CMD payload.
func ParseCommand(payload []byte) (cmd byte, paramType byte, param uint16, err error) {
	if len(payload) < 4 {
		return 0, 0, 0, ErrInvalidMessage
	}
	return payload[0], payload[1], binary.LittleEndian.Uint16(payload[2:4]), nil
}

// ParseStatus decodes a STATUS payload.
func ParseStatus(payload []byte) (StatusPayload, error) {
	if len(payload) < 12 {
		return StatusPayload{}, ErrInvalidMessage
	}
	return StatusPayload{
		Acquiring:     payload[0] != 0,
		Channel:       payload[1],
		ThresholdMv:   binary.LittleEndian.Uint16(payload[2:4]),
		UptimeSeconds: binary.LittleEndian.Uint32(payload[4:8]),
		SamplesSent:   binary.LittleEndian.Uint32(payload[8:12]),
	}, nil
}

// MvToAdc converts a millivolt value to the corresponding 12-bit ADC code.
func MvToAdc(mv uint16) uint16 {
	return uint16((uint32(mv) * 4095) / 3300)
}

// AdcToMv converts a 12-bit ADC code to millivolts.
func AdcToMv(adc uint16) uint16 {
	return uint16((uint32(adc) * 3300) / 4095)
}
