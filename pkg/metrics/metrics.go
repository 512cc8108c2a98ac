// Package metrics exposes frame loop and transport counters to Prometheus.
package metrics

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-tuber/pkg/avatar"
)

const namespace = "tuber"

// Metrics holds every collector the tuber exports.
type Metrics struct {
	registry *prometheus.Registry

	Frames        prometheus.Counter
	FrameDuration prometheus.Histogram
	TierCommits   *prometheus.CounterVec
	Onsets        prometheus.Counter
	Pops          prometheus.Counter
	Blinks        prometheus.Counter
	Switches      prometheus.Counter
	Loudness      prometheus.Gauge
	Tier          prometheus.Gauge
	Override      prometheus.Gauge

	OverlayClients prometheus.Gauge
	OverlayDropped prometheus.Gauge
	RemotePeers    prometheus.Gauge
	RemoteChunks   *prometheus.CounterVec
	Reloads        *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total number of resolved frames",
		}),
		FrameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Time spent resolving and publishing one frame",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		}),
		TierCommits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_changes_total",
			Help:      "Committed speaking tier changes, by new tier",
		}, []string{"tier"}),
		Onsets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_onsets_total",
			Help:      "Transitions out of the quiet tier",
		}),
		Pops: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pops_total",
			Help:      "Pop animations started",
		}),
		Blinks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blinks_total",
			Help:      "Blinks fired, including mood-change resets",
		}),
		Switches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expression_switches_total",
			Help:      "Expression latches from switch hotkeys",
		}),
		Loudness: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loudness_dbfs",
			Help:      "Most recent loudness after gain, floored at -120",
		}),
		Tier: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tier",
			Help:      "Committed speaking tier (0 quiet .. 3 yell)",
		}),
		Override: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hold_override",
			Help:      "1 while a hold hotkey shapes the frame",
		}),
		OverlayClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overlay_clients",
			Help:      "Connected overlay websocket clients",
		}),
		OverlayDropped: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overlay_dropped_messages",
			Help:      "Messages the overlay hub discarded because it was backed up",
		}),
		RemotePeers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remote_mic_peers",
			Help:      "Connected remote microphone peers",
		}),
		RemoteChunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_mic_messages_total",
			Help:      "Remote microphone messages, by format",
		}, []string{"format"}),
		Reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Configuration reloads, by result",
		}, []string{"result"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveFrame records one frame and the events that produced it.
func (m *Metrics) ObserveFrame(f avatar.Frame, ev avatar.Events, took time.Duration) {
	m.Frames.Inc()
	m.FrameDuration.Observe(took.Seconds())

	db := float64(f.Loudness)
	if math.IsNaN(db) || db < -120 {
		db = -120
	}
	m.Loudness.Set(db)
	m.Tier.Set(float64(f.Tier))
	if f.Override {
		m.Override.Set(1)
	} else {
		m.Override.Set(0)
	}

	if ev.TierChanged {
		m.TierCommits.WithLabelValues(f.Tier.String()).Inc()
	}
	if ev.Onset {
		m.Onsets.Inc()
	}
	if ev.Pop {
		m.Pops.Inc()
	}
	if ev.Blinked {
		m.Blinks.Inc()
	}
	if ev.Switched {
		m.Switches.Inc()
	}
}

// ObserveReload records a configuration reload attempt.
func (m *Metrics) ObserveReload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Reloads.WithLabelValues(result).Inc()
}
