// fatal diagnostic and halt path
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package halt implements the fatal diagnostic/halt path of spec.md §6: on
// an unrecoverable bring-up failure or fault, a diagnostic line is printed
// directly, bypassing the normal serialized logger, and the process stops
// in a low-power wait. This mirrors the teacher's printk-bypass console
// (board/qemu/microvm/console.go), where a fatal diagnostic goes out a raw
// byte path independent of any buffered/mutexed writer.
package halt

import (
	"fmt"
	"io"
	"os"
)

// Writer is the raw diagnostic sink; overridable in tests.
var Writer io.Writer = os.Stderr

// haltFn is called after the diagnostic is printed; overridable in tests so
// a halt can be observed without hanging the test binary.
var haltFn = blockForever

func blockForever() {
	select {}
}

// Fatal prints a diagnostic line directly to Writer, bypassing
// internal/logger entirely, and then halts the process.
func Fatal(format string, args ...any) {
	fmt.Fprintf(Writer, "FATAL "+format+"\n", args...)
	haltFn()
}
