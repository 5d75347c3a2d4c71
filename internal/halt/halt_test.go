// fatal diagnostic and halt path tests
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package halt

import (
	"bytes"
	"strings"
	"testing"
)

func TestFatalPrintsAndHalts(t *testing.T) {
	var buf bytes.Buffer
	oldWriter, oldHalt := Writer, haltFn
	defer func() { Writer, haltFn = oldWriter, oldHalt }()

	Writer = &buf
	halted := false
	haltFn = func() { halted = true }

	Fatal("adc init failed: %v", "boom")

	if !strings.Contains(buf.String(), "FATAL adc init failed: boom") {
		t.Fatalf("unexpected diagnostic: %q", buf.String())
	}
	if !halted {
		t.Fatalf("expected halt function to run")
	}
}
