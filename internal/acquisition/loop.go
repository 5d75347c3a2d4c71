// acquisition goroutine
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package acquisition implements the acquisition goroutine of spec.md
// §4.4: threshold-gated sampling, batch assembly, and back-pressured
// transmission to the current transmit target.
package acquisition

import (
	"time"

	"github.com/SzewczykW/rtos-data-acquisition/internal/acqstate"
	"github.com/SzewczykW/rtos-data-acquisition/internal/adc"
	"github.com/SzewczykW/rtos-data-acquisition/internal/config"
	"github.com/SzewczykW/rtos-data-acquisition/internal/logger"
	"github.com/SzewczykW/rtos-data-acquisition/internal/netstate"
	"github.com/SzewczykW/rtos-data-acquisition/internal/protocol"
	"github.com/SzewczykW/rtos-data-acquisition/internal/stats"
	"github.com/SzewczykW/rtos-data-acquisition/internal/target"
	"github.com/SzewczykW/rtos-data-acquisition/internal/txsock"
)

// Idle/cadence timing, overridable by tests.
var (
	IdleBackoff     = 100 * time.Millisecond
	SampleCadence   = time.Millisecond
	AdcErrorBackoff = time.Millisecond
)

// Loop is the acquisition goroutine's state.
type Loop struct {
	Cfg      *config.Config
	Log      *logger.Logger
	ADC      *adc.ADC
	AcqState *acqstate.Machine
	NetState *netstate.Machine
	Target   *target.Target
	Stats    *stats.Acquisition
	TxSock   *txsock.Handle

	channel   int
	batchSize int
	batch     []uint16

	// stop, if non-nil, ends Run after the current iteration. Tests use
	// this to bound an otherwise infinite loop.
	stop chan struct{}
}

// New returns an acquisition Loop ready to Run. The ADC is left
// uninitialized; Run initializes it for the configured channel on first
// entry to Running.
func New(cfg *config.Config, log *logger.Logger, a *adc.ADC, acqState *acqstate.Machine,
	netState *netstate.Machine, tgt *target.Target, st *stats.Acquisition, sock *txsock.Handle) *Loop {
	return &Loop{
		Cfg: cfg, Log: log, ADC: a, AcqState: acqState, NetState: netState,
		Target: tgt, Stats: st, TxSock: sock,
		channel: -1,
	}
}

// Stop signals Run to return after its current iteration. Safe to call
// once; intended for tests.
func (l *Loop) Stop() {
	if l.stop == nil {
		l.stop = make(chan struct{})
	}
	close(l.stop)
}

// Run executes the acquisition loop until Stop is called (or forever, in
// production use, since the real device never returns from its tasks).
func (l *Loop) Run() {
	for {
		if l.stop != nil {
			select {
			case <-l.stop:
				return
			default:
			}
		}
		l.iterate()
	}
}

func (l *Loop) iterate() {
	if l.AcqState.Get() != acqstate.Running {
		time.Sleep(IdleBackoff)
		return
	}
	if !l.NetState.IsReady() {
		time.Sleep(IdleBackoff)
		return
	}

	l.reconcileConfig()

	sample, err := l.ADC.ReadSynchronous()
	if err != nil {
		l.Stats.Errors.Add(1)
		time.Sleep(AdcErrorBackoff)
		return
	}

	thresholdAdc := protocol.MvToAdc(uint16(l.Cfg.ThresholdMv()))
	if sample >= thresholdAdc {
		l.batch = append(l.batch, sample)
		l.Stats.SamplesCollected.Add(1)
	}

	if len(l.batch) >= l.batchSize {
		l.emitBatch()
	}

	time.Sleep(SampleCadence)
}

// reconcileConfig applies channel and batch-size changes observed from the
// shared config record. A channel change tears down and reinitializes the
// ADC (escalating to Error on failure) and resets the in-progress batch; a
// batch-size change alone just resets the batch.
func (l *Loop) reconcileConfig() {
	ch := l.Cfg.Channel()
	bs := l.Cfg.BatchSize()

	if ch != l.channel {
		l.ADC.Deinitialize()
		if err := l.ADC.Initialize(ch); err != nil {
			l.Log.Criticalf("ADC reinit failed for channel %d: %v", ch, err)
			l.AcqState.Fault()
			return
		}
		l.channel = ch
		l.batch = l.batch[:0]
	}

	if bs != l.batchSize {
		l.batchSize = bs
		l.batch = l.batch[:0]
	}
}

func (l *Loop) emitBatch() {
	defer func() { l.batch = l.batch[:0] }()

	tgt, ok := l.Target.Get()
	if !ok {
		return
	}
	sock := l.TxSock.Get()
	if sock == nil {
		return
	}

	buf := make([]byte, protocol.HeaderSize+protocol.MaxDataPayload)
	n, err := protocol.BuildData(buf, byte(l.channel), l.batch)
	if err != nil {
		l.Stats.Errors.Add(1)
		return
	}

	if err := sock.Send(tgt, buf[:n]); err != nil {
		l.Stats.Errors.Add(1)
		return
	}
	l.Stats.PacketsSent.Add(1)
}
