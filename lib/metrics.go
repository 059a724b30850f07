package lib

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

/* This file implements dev-ops telemetry for the node in the form of prometheus metrics */

const metricsPattern = "/metrics"

// Metrics represents a server that exposes Prometheus metrics
type Metrics struct {
	server   *http.Server         // the http prometheus server
	registry *prometheus.Registry // per-node registry so multiple nodes may share a process
	config   MetricsConfig        // the configuration
	log      LoggerI              // the logger

	BFTMetrics     // consensus telemetry
	MempoolMetrics // transaction pool telemetry
}

// BFTMetrics represents the telemetry for the consensus module
type BFTMetrics struct {
	Height        prometheus.Gauge     // what's the height of this chain?
	Round         prometheus.Gauge     // what round is the current height on?
	Phase         prometheus.Gauge     // what phase of the round state machine is executing?
	ProposerCount prometheus.Counter   // how many times did this node propose the block?
	CommitTime    prometheus.Histogram // how long did the height take to commit?
}

// MempoolMetrics represents the telemetry for the transaction pool
type MempoolMetrics struct {
	MempoolTxCount prometheus.Gauge // how many transactions are pooled?
	MempoolBytes   prometheus.Gauge // how large is the pool in bytes?
}

// NewMetrics() initializes the telemetry gauges and their registry
func NewMetrics(config MetricsConfig, log LoggerI) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		config:   config,
		log:      log,
		BFTMetrics: BFTMetrics{
			Height:        factory.NewGauge(prometheus.GaugeOpts{Name: "auric_bft_height", Help: "height of the chain"}),
			Round:         factory.NewGauge(prometheus.GaugeOpts{Name: "auric_bft_round", Help: "round of the current height"}),
			Phase:         factory.NewGauge(prometheus.GaugeOpts{Name: "auric_bft_phase", Help: "phase of the round state machine"}),
			ProposerCount: factory.NewCounter(prometheus.CounterOpts{Name: "auric_bft_proposer_count", Help: "times this node proposed"}),
			CommitTime:    factory.NewHistogram(prometheus.HistogramOpts{Name: "auric_bft_commit_seconds", Help: "seconds from height start to commit"}),
		},
		MempoolMetrics: MempoolMetrics{
			MempoolTxCount: factory.NewGauge(prometheus.GaugeOpts{Name: "auric_mempool_tx_count", Help: "transactions pooled"}),
			MempoolBytes:   factory.NewGauge(prometheus.GaugeOpts{Name: "auric_mempool_bytes", Help: "pool size in bytes"}),
		},
	}
}

// Start() serves the prometheus handler; a no-op when telemetry is disabled
func (m *Metrics) Start() {
	if !m.config.MetricsEnabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(metricsPattern, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{Addr: ":" + m.config.MetricsPort, Handler: mux}
	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.log.Errorf("metrics server stopped: %s", err.Error())
		}
	}()
}

// Stop() shuts the metrics server down
func (m *Metrics) Stop() {
	if m.server != nil {
		_ = m.server.Close()
	}
}

// UpdateBFT() records the view the consensus engine is executing
func (m *Metrics) UpdateBFT(height, round uint64, phase Phase) {
	m.Height.Set(float64(height))
	m.Round.Set(float64(round))
	m.Phase.Set(float64(phase))
}

// UpdateMempool() records the pool's occupancy
func (m *Metrics) UpdateMempool(txCount int, txBytes uint64) {
	m.MempoolTxCount.Set(float64(txCount))
	m.MempoolBytes.Set(float64(txBytes))
}

// ObserveCommit() records the wall-clock duration of a committed height
func (m *Metrics) ObserveCommit(since time.Time) {
	m.CommitTime.Observe(time.Since(since).Seconds())
}
