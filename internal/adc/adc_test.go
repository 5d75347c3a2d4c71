// ADC driver tests
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package adc

import "testing"

func TestReadSynchronousUsesScriptedSource(t *testing.T) {
	src := NewScriptedSource([]uint16{100, 2500, 3000})
	a := New(src)
	if err := a.Initialize(0); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	for _, want := range []uint16{100, 2500, 3000} {
		got, err := a.ReadSynchronous()
		if err != nil {
			t.Fatalf("ReadSynchronous: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}

func TestGetValueBusyBeforeConversionDone(t *testing.T) {
	blocked := make(chan struct{})
	src := func(channel int) uint16 {
		<-blocked
		return 42
	}
	a := New(src)
	a.Initialize(0)

	if err := a.StartConversion(); err != nil {
		t.Fatalf("StartConversion: %v", err)
	}
	if _, err := a.GetValue(); err != ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(blocked)
	for !a.ConversionDone() {
	}
	v, err := a.GetValue()
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestInitializeIdempotent(t *testing.T) {
	a := New(NewLCGSource())
	if err := a.Initialize(2); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := a.Initialize(2); err != nil {
		t.Fatalf("Initialize (idempotent): %v", err)
	}
}

func TestInitializeChannelOutOfRange(t *testing.T) {
	a := New(NewLCGSource())
	if err := a.Initialize(8); err == nil {
		t.Fatalf("expected error for channel 8")
	}
}

func TestStartConversionBeforeInitialize(t *testing.T) {
	a := New(NewLCGSource())
	if err := a.StartConversion(); err == nil {
		t.Fatalf("expected error before Initialize")
	}
}
