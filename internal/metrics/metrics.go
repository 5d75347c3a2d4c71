// Prometheus metrics endpoint
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package metrics exposes the node's counters (spec.md §3) to Prometheus,
// following the teacher pack's own convention of gathering ad hoc counters
// behind a small promauto-registered struct (madpsy-ka9q_ubersdr/prometheus.go)
// rather than hand-rolling a text exposition format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SzewczykW/rtos-data-acquisition/internal/stats"
)

// Metrics mirrors stats.Network and stats.Acquisition as Prometheus gauges.
// Gauges, not counters, because the underlying fields are polled snapshots
// rather than directly-instrumented increments.
type Metrics struct {
	netPacketsSent     prometheus.Gauge
	netPacketsReceived prometheus.Gauge
	netBytesSent       prometheus.Gauge
	netBytesReceived   prometheus.Gauge
	netErrors          prometheus.Gauge

	acqSamplesCollected prometheus.Gauge
	acqPacketsSent      prometheus.Gauge
	acqErrors           prometheus.Gauge
}

// New registers the node's gauges against reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		netPacketsSent: f.NewGauge(prometheus.GaugeOpts{
			Name: "daqnode_network_packets_sent_total",
			Help: "UDP datagrams sent by the network goroutine.",
		}),
		netPacketsReceived: f.NewGauge(prometheus.GaugeOpts{
			Name: "daqnode_network_packets_received_total",
			Help: "UDP datagrams received by the network goroutine.",
		}),
		netBytesSent: f.NewGauge(prometheus.GaugeOpts{
			Name: "daqnode_network_bytes_sent_total",
			Help: "Bytes sent by the network goroutine.",
		}),
		netBytesReceived: f.NewGauge(prometheus.GaugeOpts{
			Name: "daqnode_network_bytes_received_total",
			Help: "Bytes received by the network goroutine.",
		}),
		netErrors: f.NewGauge(prometheus.GaugeOpts{
			Name: "daqnode_network_errors_total",
			Help: "Network-layer errors (malformed messages, send failures, rate-limit drops).",
		}),
		acqSamplesCollected: f.NewGauge(prometheus.GaugeOpts{
			Name: "daqnode_acquisition_samples_collected_total",
			Help: "ADC samples that crossed the configured threshold.",
		}),
		acqPacketsSent: f.NewGauge(prometheus.GaugeOpts{
			Name: "daqnode_acquisition_packets_sent_total",
			Help: "DATA packets emitted by the acquisition goroutine.",
		}),
		acqErrors: f.NewGauge(prometheus.GaugeOpts{
			Name: "daqnode_acquisition_errors_total",
			Help: "ADC read failures and DATA packet build/send failures.",
		}),
	}
}

// Update refreshes every gauge from the live counters. Callers typically
// wire this into promhttp's handler via a custom Collector, but polling it
// on each scrape (see Handler) keeps the Prometheus wiring decoupled from
// the hot paths in network and acquisition.
func (m *Metrics) Update(net *stats.Network, acq *stats.Acquisition) {
	ns := net.Snapshot()
	m.netPacketsSent.Set(float64(ns.PacketsSent))
	m.netPacketsReceived.Set(float64(ns.PacketsReceived))
	m.netBytesSent.Set(float64(ns.BytesSent))
	m.netBytesReceived.Set(float64(ns.BytesReceived))
	m.netErrors.Set(float64(ns.Errors))

	as := acq.Snapshot()
	m.acqSamplesCollected.Set(float64(as.SamplesCollected))
	m.acqPacketsSent.Set(float64(as.PacketsSent))
	m.acqErrors.Set(float64(as.Errors))
}

// Handler returns an http.Handler that refreshes the gauges from net/acq
// and serves them in the Prometheus text exposition format. Intended for a
// bench/debug listener, not the embedded target's UDP protocol surface.
func Handler(reg *prometheus.Registry, m *Metrics, net *stats.Network, acq *stats.Acquisition) http.Handler {
	inner := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update(net, acq)
		inner.ServeHTTP(w, r)
	})
}
