// daqnode data acquisition node
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Command daqnode runs the data acquisition node described in spec.md: a
// network goroutine servicing the UDP control/status protocol and an
// acquisition goroutine sampling the ADC and emitting threshold-gated DATA
// batches. The two run for the process lifetime once Init activity below
// completes, mirroring the teacher's own "Init activity launches tasks and
// returns" board bring-up (example/example.go).
package main

import (
	"flag"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SzewczykW/rtos-data-acquisition/internal/acqstate"
	"github.com/SzewczykW/rtos-data-acquisition/internal/acquisition"
	"github.com/SzewczykW/rtos-data-acquisition/internal/adc"
	"github.com/SzewczykW/rtos-data-acquisition/internal/config"
	"github.com/SzewczykW/rtos-data-acquisition/internal/halt"
	"github.com/SzewczykW/rtos-data-acquisition/internal/logger"
	"github.com/SzewczykW/rtos-data-acquisition/internal/metrics"
	"github.com/SzewczykW/rtos-data-acquisition/internal/netlink"
	"github.com/SzewczykW/rtos-data-acquisition/internal/netstate"
	"github.com/SzewczykW/rtos-data-acquisition/internal/netudp"
	"github.com/SzewczykW/rtos-data-acquisition/internal/network"
	"github.com/SzewczykW/rtos-data-acquisition/internal/stats"
	"github.com/SzewczykW/rtos-data-acquisition/internal/target"
	"github.com/SzewczykW/rtos-data-acquisition/internal/txsock"
)

var (
	configPath  = flag.String("config", "", "optional YAML bootstrap override file")
	macAddr     = flag.String("mac", "da:7a:00:00:00:01", "device MAC address for the simulated link")
	nodeIP      = flag.String("ip", "10.0.0.1", "IPv4 address assigned to the node once bring-up completes")
	linkDelay   = flag.Duration("link-delay", 200*time.Millisecond, "simulated link-up delay")
	ipDelay     = flag.Duration("ip-delay", 400*time.Millisecond, "simulated address-assignment delay")
	metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9100)")
)

func main() {
	flag.Parse()

	cfg, err := config.New(*configPath)
	if err != nil {
		os.Stderr.WriteString("daqnode: config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.NewDefault(cfg)
	log.Infof("daqnode starting, channel=%d threshold=%dmV batch=%d port=%d",
		cfg.Channel(), cfg.ThresholdMv(), cfg.BatchSize(), cfg.LocalPort())

	mac, err := net.ParseMAC(*macAddr)
	if err != nil {
		halt.Fatal("invalid -mac %q: %v", *macAddr, err)
	}
	ip := net.ParseIP(*nodeIP)
	if ip == nil {
		halt.Fatal("invalid -ip %q", *nodeIP)
	}

	stk := netlink.NewStack(mac)
	stk.SimulateBringUp(*linkDelay, *ipDelay, ip)

	pool := netudp.NewPool(stk)

	acqState := &acqstate.Machine{}
	netState := &netstate.Machine{}
	tgt := &target.Target{}
	netStats := &stats.Network{}
	acqStats := &stats.Acquisition{}
	sockHandle := &txsock.Handle{}

	source := adc.NewLCGSource()
	a := adc.New(source)
	if err := a.Initialize(cfg.Channel()); err != nil {
		halt.Fatal("ADC initialize failed: %v", err)
	}

	netLoop := network.New(cfg, log, stk, pool, netState, acqState, tgt, netStats, acqStats, sockHandle)
	acqLoop := acquisition.New(cfg, log, a, acqState, netState, tgt, acqStats, sockHandle)

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg, m, netStats, acqStats))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Errorf("metrics listener stopped: %v", err)
			}
		}()
		log.Infof("metrics listening on %s", *metricsAddr)
	}

	go acqLoop.Run()
	netLoop.Run()

	// Run only returns if network bring-up failed, link recovery timed out,
	// or the bound socket was closed; each is an unrecoverable condition for
	// this process.
	halt.Fatal("network goroutine exited, state=%s", netState.Get())
}
