// serialized logger tests
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/SzewczykW/rtos-data-acquisition/internal/config"
)

func TestLevelFiltering(t *testing.T) {
	cfg, _ := config.New("")
	cfg.SetLogLevel(int(config.LevelWarning))

	var buf bytes.Buffer
	l := New(&buf, cfg)

	l.Infof("should not appear")
	l.Warnf("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("info line should have been filtered: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("warning line missing: %q", out)
	}
}

func TestTruncation(t *testing.T) {
	cfg, _ := config.New("")
	var buf bytes.Buffer
	l := New(&buf, cfg)

	long := strings.Repeat("x", 400)
	l.Infof("%s", long)

	out := buf.String()
	if !strings.Contains(out, "...[TRUNCATED]...") {
		t.Fatalf("expected truncation suffix, got %q", out)
	}
	if len(out) > maxLine+len("INFO  \n") {
		t.Fatalf("line exceeds expected bound: %d bytes", len(out))
	}
}

func TestLogLevelNoneSuppressesAll(t *testing.T) {
	cfg, _ := config.New("")
	cfg.SetLogLevel(int(config.LevelNone))
	var buf bytes.Buffer
	l := New(&buf, cfg)

	l.Criticalf("still suppressed")

	if buf.Len() != 0 {
		t.Fatalf("expected no output at LevelNone, got %q", buf.String())
	}
}
