// network goroutine
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package network implements the network goroutine of spec.md §4.5: link
// bring-up, socket creation, and the receive/dispatch steady state that
// services PING/PONG, DATA-directed commands, and STATUS queries.
package network

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/SzewczykW/rtos-data-acquisition/internal/acqstate"
	"github.com/SzewczykW/rtos-data-acquisition/internal/config"
	"github.com/SzewczykW/rtos-data-acquisition/internal/logger"
	"github.com/SzewczykW/rtos-data-acquisition/internal/netlink"
	"github.com/SzewczykW/rtos-data-acquisition/internal/netstate"
	"github.com/SzewczykW/rtos-data-acquisition/internal/netudp"
	"github.com/SzewczykW/rtos-data-acquisition/internal/protocol"
	"github.com/SzewczykW/rtos-data-acquisition/internal/stats"
	"github.com/SzewczykW/rtos-data-acquisition/internal/target"
	"github.com/SzewczykW/rtos-data-acquisition/internal/txsock"
)

// Bring-up and steady-state timing. Package-level vars so tests can
// shorten them.
var (
	LinkPollInterval = 500 * time.Millisecond
	LinkTimeout      = 30 * time.Second
	IPPollInterval   = 500 * time.Millisecond
	IPTimeout        = 30 * time.Second
	ReceiveTimeout   = 100 * time.Millisecond
)

// rateLimit and rateBurst bound the per-sender command dispatch limiter.
const (
	rateLimit    = 20 // commands/sec
	rateBurst    = 20
	maxLimiters  = 256
)

// socket is the subset of *netudp.Socket the steady-state dispatch loop
// needs. Expressing it as an interface lets tests exercise dispatch and
// command handling against a fake, the same way internal/txsock lets the
// acquisition goroutine send DATA packets without a real network stack.
type socket interface {
	Receive(buf []byte, timeout time.Duration) (int, net.UDPAddr, error)
	Send(remote net.UDPAddr, payload []byte) error
}

// Loop is the network goroutine's state.
type Loop struct {
	Cfg       *config.Config
	Log       *logger.Logger
	Stack     *netlink.Stack
	Pool      *netudp.Pool
	NetState  *netstate.Machine
	AcqState  *acqstate.Machine
	Target    *target.Target
	Stats     *stats.Network
	AcqStats  *stats.Acquisition
	TxSock    *txsock.Handle

	startTime time.Time

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
}

// New returns a network Loop ready to Run.
func New(cfg *config.Config, log *logger.Logger, st *netlink.Stack, pool *netudp.Pool,
	netState *netstate.Machine, acqState *acqstate.Machine, tgt *target.Target,
	netStats *stats.Network, acqStats *stats.Acquisition, sock *txsock.Handle) *Loop {
	return &Loop{
		Cfg: cfg, Log: log, Stack: st, Pool: pool,
		NetState: netState, AcqState: acqState, Target: tgt,
		Stats: netStats, AcqStats: acqStats, TxSock: sock,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Run executes the full network lifecycle: WaitLink, WaitIp, socket
// creation, Ready. It returns only if bring-up fails, the link does not
// come back within LinkTimeout after a loss, or the bound socket is closed.
func (l *Loop) Run() {
	l.startTime = time.Now()

	l.NetState.Set(netstate.WaitLink)
	if !l.waitLink() {
		l.Log.Criticalf("link did not come up within %s", LinkTimeout)
		l.NetState.Set(netstate.Error)
		return
	}

	l.NetState.Set(netstate.WaitIp)
	if !l.waitIP() {
		l.Log.Criticalf("no IPv4 address acquired within %s", IPTimeout)
		l.NetState.Set(netstate.Error)
		return
	}

	sock, err := l.Pool.Open(uint16(l.Cfg.LocalPort()))
	if err != nil {
		l.Log.Criticalf("socket creation failed: %v", err)
		l.NetState.Set(netstate.Error)
		return
	}
	l.TxSock.Set(sock)

	l.NetState.Set(netstate.Ready)
	l.Log.Infof("network ready on port %d", l.Cfg.LocalPort())

	l.steadyState(sock)
}

func (l *Loop) waitLink() bool {
	deadline := time.Now().Add(LinkTimeout)
	for {
		if l.Stack.Cable.LinkUp() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(LinkPollInterval)
	}
}

func (l *Loop) waitIP() bool {
	deadline := time.Now().Add(IPTimeout)
	for {
		if l.Stack.Cable.Address() != nil {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(IPPollInterval)
	}
}

func (l *Loop) steadyState(sock socket) {
	buf := make([]byte, protocol.MaxPacketSize)

	for {
		if !l.Stack.Cable.LinkUp() {
			l.NetState.Set(netstate.WaitLink)
			l.Log.Warnf("link down, recovering")
			if !l.waitLink() {
				l.NetState.Set(netstate.Error)
				return
			}
			l.NetState.Set(netstate.Ready)
		}

		n, remote, err := sock.Receive(buf, ReceiveTimeout)
		switch err {
		case nil:
			l.Stats.PacketsReceived.Add(1)
			l.Stats.BytesReceived.Add(uint64(n))
			l.dispatch(sock, remote, buf[:n])
		case netudp.ErrTimeout:
			continue
		case netudp.ErrClosed:
			return
		default:
			l.Stats.Errors.Add(1)
		}
	}
}

func (l *Loop) dispatch(sock socket, remote net.UDPAddr, data []byte) {
	hdr, payload, err := protocol.Parse(data)
	if err != nil {
		l.Stats.Errors.Add(1)
		l.Log.Warnf("invalid message from %s: %v", remote.String(), err)
		return
	}

	if !l.allow(remote) {
		l.Stats.Errors.Add(1)
		return
	}

	switch hdr.Type {
	case protocol.TypePing:
		l.replyPong(sock, remote)
	case protocol.TypeCmd:
		l.handleCommand(sock, remote, payload)
	case protocol.TypePong:
		l.Log.Debugf("pong from %s seq=%d", remote.String(), hdr.Sequence)
	default:
		l.Log.Warnf("dropping unknown message type %#x from %s", hdr.Type, remote.String())
	}
}

func (l *Loop) allow(remote net.UDPAddr) bool {
	key := remote.String()

	l.limMu.Lock()
	defer l.limMu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxLimiters {
			// Pool exhausted; fail open rather than let map growth
			// become unbounded memory use.
			return true
		}
		lim = rate.NewLimiter(rate.Limit(rateLimit), rateBurst)
		l.limiters[key] = lim
	}
	return lim.Allow()
}

func (l *Loop) send(sock socket, remote net.UDPAddr, buf []byte) {
	if err := sock.Send(remote, buf); err != nil {
		l.Stats.Errors.Add(1)
		l.Log.Warnf("send to %s failed: %v", remote.String(), err)
		return
	}
	l.Stats.PacketsSent.Add(1)
	l.Stats.BytesSent.Add(uint64(len(buf)))
}

func (l *Loop) replyPong(sock socket, remote net.UDPAddr) {
	buf := make([]byte, protocol.HeaderSize)
	n, err := protocol.BuildPong(buf)
	if err != nil {
		l.Stats.Errors.Add(1)
		return
	}
	l.send(sock, remote, buf[:n])
}

func (l *Loop) replyStatus(sock socket, remote net.UDPAddr) {
	buf := make([]byte, protocol.HeaderSize+16)
	n, err := protocol.BuildStatus(buf, protocol.StatusPayload{
		Acquiring:     l.AcqState.IsRunning(),
		Channel:       byte(l.Cfg.Channel()),
		ThresholdMv:   uint16(l.Cfg.ThresholdMv()),
		UptimeSeconds: uint32(time.Since(l.startTime).Seconds()),
		SamplesSent:   uint32(l.AcqStats.PacketsSent.Load()),
	})
	if err != nil {
		l.Stats.Errors.Add(1)
		return
	}
	l.send(sock, remote, buf[:n])
}

func (l *Loop) handleCommand(sock socket, remote net.UDPAddr, payload []byte) {
	cmd, paramType, param, err := protocol.ParseCommand(payload)
	if err != nil {
		l.Stats.Errors.Add(1)
		l.Log.Warnf("malformed command from %s: %v", remote.String(), err)
		return
	}

	switch cmd {
	case protocol.CmdStartAcq:
		l.Target.Set(remote)
		l.AcqState.Start()
		l.Log.Infof("acquisition started, target=%s", remote.String())
	case protocol.CmdStopAcq:
		l.AcqState.Stop()
		l.Log.Infof("acquisition stopped")
	case protocol.CmdGetStatus:
		l.replyStatus(sock, remote)
	case protocol.CmdConfigure:
		l.configure(paramType, param)
	default:
		l.Log.Warnf("unknown command %#x from %s", cmd, remote.String())
	}
}

func (l *Loop) configure(paramType byte, param uint16) {
	var err error
	switch paramType {
	case protocol.ParamThresholdPercent:
		err = l.Cfg.SetThresholdPercent(int(param))
	case protocol.ParamThresholdMv:
		err = l.Cfg.SetThresholdMv(int(param))
	case protocol.ParamBatchSize:
		err = l.Cfg.SetBatchSize(int(param))
	case protocol.ParamChannel:
		err = l.Cfg.SetChannel(int(param))
	case protocol.ParamResetSequence:
		protocol.ResetSequence()
	case protocol.ParamLogLevel:
		err = l.Cfg.SetLogLevel(int(param))
	default:
		// Unknown param types are silently ignored per spec.
		return
	}
	if err != nil {
		l.Log.Debugf("configure rejected: %v", err)
	}
}
