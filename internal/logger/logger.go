// serialized logger
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package logger implements the level-filtered, serialized line writer of
// spec.md §4.6. A single mutex is held for the duration of one formatted
// line, modeling the teacher's UART driver (soc/nxp/uart) where only one
// transmission is ever in flight. The line is written synchronously under
// the mutex; the writer then signals and waits on a one-slot completion
// channel, standing in for the UART TX-complete interrupt releasing a
// counting semaphore.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/SzewczykW/rtos-data-acquisition/internal/config"
)

// maxLine bounds a formatted line; overflow is truncated and suffixed.
const maxLine = 256

const truncSuffix = "...[TRUNCATED]..."

// txTimeout bounds how long a caller waits on the completion channel for
// one line before giving up (mirrors a bounded wait on the TX-complete
// semaphore rather than an unbounded block).
const txTimeout = time.Second

// Logger serializes formatted output from any number of goroutines.
type Logger struct {
	mu   sync.Mutex
	out  io.Writer
	cfg  *config.Config
	done chan struct{}
}

// New returns a Logger writing to w, filtered by cfg's current log level.
func New(w io.Writer, cfg *config.Config) *Logger {
	return &Logger{out: w, cfg: cfg, done: make(chan struct{}, 1)}
}

// NewDefault returns a Logger writing to stderr.
func NewDefault(cfg *config.Config) *Logger {
	return New(os.Stderr, cfg)
}

func (l *Logger) enabled(level config.LogLevel) bool {
	return l.cfg == nil || level >= l.cfg.LogLevel()
}

func (l *Logger) write(level config.LogLevel, prefix, format string, args ...any) {
	if !l.enabled(level) {
		return
	}

	line := fmt.Sprintf(prefix+format, args...)
	if len(line) > maxLine {
		cut := maxLine - len(truncSuffix)
		if cut < 0 {
			cut = 0
		}
		line = line[:cut] + truncSuffix
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	io.WriteString(l.out, line)

	// Signal completion the way a UART TX-complete ISR releases the
	// caller's semaphore; the channel is drained immediately since there
	// is always exactly one writer holding the mutex.
	select {
	case l.done <- struct{}{}:
	default:
	}
	select {
	case <-l.done:
	case <-time.After(txTimeout):
	}
}

// Debugf logs at Debug level.
func (l *Logger) Debugf(format string, args ...any) { l.write(config.LevelDebug, "DEBUG ", format, args...) }

// Infof logs at Info level.
func (l *Logger) Infof(format string, args ...any) { l.write(config.LevelInfo, "INFO  ", format, args...) }

// Warnf logs at Warning level.
func (l *Logger) Warnf(format string, args ...any) { l.write(config.LevelWarning, "WARN  ", format, args...) }

// Errorf logs at Error level.
func (l *Logger) Errorf(format string, args ...any) { l.write(config.LevelError, "ERROR ", format, args...) }

// Criticalf logs at Critical level.
func (l *Logger) Criticalf(format string, args ...any) {
	l.write(config.LevelCritical, "CRIT  ", format, args...)
}
