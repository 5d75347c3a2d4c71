// ADC sample source
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Pseudo-random sample generator used as the default production Source
// when no real analog front-end is attached. It is seeded from the clock,
// so the sequence differs from one run to the next. Adapted
// from the teacher's linear-congruential generator
// (internal/rng.GetLCGData), which exists there for boards lacking a
// hardware entropy source; here it plays the analogous role of "analog
// input with no physical SoC register behind it."
package adc

import "time"

const (
	lcgM = 1 << 31
	lcgA = 1103515245
	lcgC = 12345
)

// lcgState holds the generator state of one Source; every channel read
// through that Source advances the same state.
type lcgState struct {
	seed uint32
}

// NewLCGSource returns a Source producing a deterministic pseudo-random
// 12-bit sequence, seeded from the current time. Different channels share
// the same sequence generator but are otherwise independent of real
// hardware state, matching the teacher's LCG fallback semantics.
func NewLCGSource() Source {
	s := &lcgState{seed: uint32(time.Now().UnixNano())}
	if s.seed == 0 {
		s.seed = 1
	}
	return func(channel int) uint16 {
		s.seed = (lcgA*s.seed + lcgC) % lcgM
		return uint16(s.seed & 0x0FFF)
	}
}

// NewScriptedSource returns a Source that yields values from the supplied
// slice in order, then repeats the final value. It is intended for tests
// that must reproduce the literal ADC sequences in spec.md §8.
func NewScriptedSource(values []uint16) Source {
	i := 0
	return func(channel int) uint16 {
		if i >= len(values) {
			if len(values) == 0 {
				return 0
			}
			return values[len(values)-1]
		}
		v := values[i]
		i++
		return v
	}
}
