// network goroutine tests
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package network

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/SzewczykW/rtos-data-acquisition/internal/acqstate"
	"github.com/SzewczykW/rtos-data-acquisition/internal/config"
	"github.com/SzewczykW/rtos-data-acquisition/internal/logger"
	"github.com/SzewczykW/rtos-data-acquisition/internal/netstate"
	"github.com/SzewczykW/rtos-data-acquisition/internal/protocol"
	"github.com/SzewczykW/rtos-data-acquisition/internal/stats"
	"github.com/SzewczykW/rtos-data-acquisition/internal/target"
	"github.com/SzewczykW/rtos-data-acquisition/internal/txsock"
)

// fakeSocket stands in for *netudp.Socket: dispatch and command handling
// never call Receive directly (steadyState does), so only Send needs to
// record outgoing replies for assertions.
type fakeSocket struct {
	mu   sync.Mutex
	sent [][]byte
	to   []net.UDPAddr
}

func (f *fakeSocket) Receive([]byte, time.Duration) (int, net.UDPAddr, error) {
	return 0, net.UDPAddr{}, nil
}

func (f *fakeSocket) Send(remote net.UDPAddr, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), payload...)
	f.sent = append(f.sent, cp)
	f.to = append(f.to, remote)
	return nil
}

func (f *fakeSocket) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestLoop(t *testing.T) (*Loop, *fakeSocket) {
	t.Helper()
	cfg, _ := config.New("")
	log := logger.New(discard{}, cfg)

	acqState := &acqstate.Machine{}
	netState := &netstate.Machine{}
	netState.Set(netstate.Ready)
	tgt := &target.Target{}
	netStats := &stats.Network{}
	acqStats := &stats.Acquisition{}
	handle := &txsock.Handle{}

	l := New(cfg, log, nil, nil, netState, acqState, tgt, netStats, acqStats, handle)
	return l, &fakeSocket{}
}

var testRemote = net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 9001}

func buildPing(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, protocol.HeaderSize)
	n, err := protocol.BuildPing(buf)
	if err != nil {
		t.Fatalf("BuildPing: %v", err)
	}
	return buf[:n]
}

func buildCommand(t *testing.T, cmd byte, paramType byte, param uint16) []byte {
	t.Helper()
	buf := make([]byte, protocol.HeaderSize+4)
	n, err := protocol.BuildCommand(buf, cmd, paramType, param)
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}
	return buf[:n]
}

func TestPingElicitsPong(t *testing.T) {
	l, sock := newTestLoop(t)
	l.dispatch(sock, testRemote, buildPing(t))

	raw := sock.last()
	if raw == nil {
		t.Fatal("expected a reply")
	}
	hdr, _, err := protocol.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if hdr.Type != protocol.TypePong {
		t.Fatalf("expected TypePong, got %#x", hdr.Type)
	}
}

func TestStartAcqLatchesTargetAndStarts(t *testing.T) {
	l, sock := newTestLoop(t)
	cmd := buildCommand(t, protocol.CmdStartAcq, 0, 0)

	l.dispatch(sock, testRemote, cmd)

	if !l.AcqState.IsRunning() {
		t.Fatal("expected acquisition to be running")
	}
	got, ok := l.Target.Get()
	if !ok {
		t.Fatal("expected target to be set")
	}
	if got.String() != testRemote.String() {
		t.Fatalf("expected target %s, got %s", testRemote.String(), got.String())
	}
	if sock.last() != nil {
		t.Fatal("expected no reply to START_ACQ")
	}
}

func TestStopAcqStopsWithNoReply(t *testing.T) {
	l, sock := newTestLoop(t)
	l.AcqState.Start()

	l.dispatch(sock, testRemote, buildCommand(t, protocol.CmdStopAcq, 0, 0))

	if l.AcqState.IsRunning() {
		t.Fatal("expected acquisition to be stopped")
	}
	if sock.last() != nil {
		t.Fatal("expected no reply to STOP_ACQ")
	}
}

func TestGetStatusRepliesToSenderRegardlessOfTarget(t *testing.T) {
	l, sock := newTestLoop(t)
	l.Target.Set(net.UDPAddr{IP: net.IPv4(192, 168, 0, 9), Port: 7000})
	l.AcqState.Start()
	l.Cfg.SetChannel(3)
	l.Cfg.SetThresholdMv(2000)

	l.dispatch(sock, testRemote, buildCommand(t, protocol.CmdGetStatus, 0, 0))

	raw := sock.last()
	if raw == nil {
		t.Fatal("expected a STATUS reply")
	}
	if dst := sock.to[len(sock.to)-1]; dst.String() != testRemote.String() {
		t.Fatalf("expected STATUS reply to %s, got %s", testRemote.String(), dst.String())
	}
	hdr, payload, err := protocol.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if hdr.Type != protocol.TypeStatus {
		t.Fatalf("expected TypeStatus, got %#x", hdr.Type)
	}
	st, err := protocol.ParseStatus(payload)
	if err != nil {
		t.Fatalf("ParseStatus: %v", err)
	}
	if !st.Acquiring {
		t.Fatal("expected Acquiring true")
	}
	if st.Channel != 3 {
		t.Fatalf("expected channel 3, got %d", st.Channel)
	}
	if st.ThresholdMv != 2000 {
		t.Fatalf("expected threshold 2000, got %d", st.ThresholdMv)
	}
}

func TestConfigureResetSequence(t *testing.T) {
	l, sock := newTestLoop(t)
	buf := make([]byte, protocol.HeaderSize)
	protocol.BuildPing(buf)
	protocol.BuildPing(buf)
	if protocol.NextSequence() == 0 {
		t.Fatal("expected sequence to have advanced before reset")
	}

	l.dispatch(sock, testRemote, buildCommand(t, protocol.CmdConfigure, protocol.ParamResetSequence, 0))

	if got := protocol.NextSequence(); got != 0 {
		t.Fatalf("expected sequence 0 after reset, got %d", got)
	}
}

func TestConfigureRejectsOutOfRangeThreshold(t *testing.T) {
	l, sock := newTestLoop(t)
	before := l.Cfg.ThresholdMv()

	l.dispatch(sock, testRemote, buildCommand(t, protocol.CmdConfigure, protocol.ParamThresholdMv, 5000))

	if l.Cfg.ThresholdMv() != before {
		t.Fatalf("expected threshold unchanged, got %d", l.Cfg.ThresholdMv())
	}
}

func TestConfigureChannelAppliesValidValue(t *testing.T) {
	l, sock := newTestLoop(t)

	l.dispatch(sock, testRemote, buildCommand(t, protocol.CmdConfigure, protocol.ParamChannel, 5))

	if l.Cfg.Channel() != 5 {
		t.Fatalf("expected channel 5, got %d", l.Cfg.Channel())
	}
}

func TestUnknownConfigureParamIsIgnored(t *testing.T) {
	l, sock := newTestLoop(t)
	before := l.Cfg.ThresholdMv()

	l.dispatch(sock, testRemote, buildCommand(t, protocol.CmdConfigure, 0xFF, 123))

	if l.Cfg.ThresholdMv() != before {
		t.Fatalf("unknown param type should not mutate config")
	}
}

func TestMalformedMessageIsDropped(t *testing.T) {
	l, sock := newTestLoop(t)
	l.dispatch(sock, testRemote, []byte{0x00, 0x01, 0x02})

	if sock.last() != nil {
		t.Fatal("expected no reply for a malformed message")
	}
	if l.Stats.Errors.Load() != 1 {
		t.Fatalf("expected 1 error counted, got %d", l.Stats.Errors.Load())
	}
}
