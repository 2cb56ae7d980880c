// ABOUTME: Prometheus instrumentation for the playback engine
// ABOUTME: Implements playback.Observer on top of client_golang collectors
package metrics

import (
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/playback"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for a player
type Metrics struct {
	// Fragment metrics
	FragmentsReceived prometheus.Counter
	FragmentBytes     prometheus.Counter
	DecodeErrors      prometheus.Counter
	FragmentsDropped  prometheus.Counter
	DecodeLatency     prometheus.Histogram

	// Playback metrics
	BlocksPlayed  prometheus.Counter
	PlayedSeconds prometheus.Counter
	DeviceErrors  prometheus.Counter
	BufferBlocks  prometheus.Gauge
	State         *prometheus.GaugeVec
}

var states = []playback.State{playback.Idle, playback.Buffering, playback.Playing, playback.Paused}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		FragmentsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "gapless_fragments_received_total",
			Help: "Total number of audio fragments received",
		}),
		FragmentBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "gapless_fragment_bytes_total",
			Help: "Total encoded bytes received",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "gapless_decode_errors_total",
			Help: "Total number of fragments skipped because they failed to decode",
		}),
		FragmentsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "gapless_fragments_dropped_total",
			Help: "Total number of fragments dropped because the buffer was full",
		}),
		DecodeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gapless_decode_duration_seconds",
			Help:    "Time spent decoding one fragment",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~200ms
		}),

		BlocksPlayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "gapless_blocks_played_total",
			Help: "Total number of blocks played to completion",
		}),
		PlayedSeconds: factory.NewCounter(prometheus.CounterOpts{
			Name: "gapless_played_seconds_total",
			Help: "Total audio played, in seconds of source time",
		}),
		DeviceErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "gapless_device_errors_total",
			Help: "Total number of blocks the output device failed to play",
		}),
		BufferBlocks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gapless_buffer_blocks",
			Help: "Current number of decoded blocks waiting to play",
		}),
		State: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gapless_state",
			Help: "Current scheduler state, 1 for the active state",
		}, []string{"state"}),
	}

	m.StateChanged(playback.Idle)
	return m
}

func (m *Metrics) FragmentReceived(bytes int) {
	m.FragmentsReceived.Inc()
	m.FragmentBytes.Add(float64(bytes))
}

func (m *Metrics) FragmentDecoded(latency time.Duration) {
	m.DecodeLatency.Observe(latency.Seconds())
}

func (m *Metrics) DecodeFailed() {
	m.DecodeErrors.Inc()
}

func (m *Metrics) FragmentDropped() {
	m.FragmentsDropped.Inc()
}

func (m *Metrics) BlockPlayed(duration time.Duration) {
	m.BlocksPlayed.Inc()
	m.PlayedSeconds.Add(duration.Seconds())
}

func (m *Metrics) DeviceFailed() {
	m.DeviceErrors.Inc()
}

func (m *Metrics) BufferLevel(occupancy int) {
	m.BufferBlocks.Set(float64(occupancy))
}

// StateChanged sets the gauge of the new state to 1 and the rest to 0
func (m *Metrics) StateChanged(state playback.State) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(s.String()).Set(v)
	}
}

var _ playback.Observer = (*Metrics)(nil)
