// Package metrics exposes the engine's runtime behavior as Prometheus
// collectors, mirroring the surface of the teacher's AudioCoreMetrics:
// per-frame counters, gain/duration histograms, and source lifecycle
// counters, scoped here to engine/stream identifiers instead of
// manager/source ones.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and updates the engine's Prometheus metrics. The zero
// value is not usable; construct with New.
type Collector struct {
	framesProcessed *prometheus.CounterVec
	framesDropped   *prometheus.CounterVec
	processingError *prometheus.CounterVec

	processingDuration *prometheus.HistogramVec
	noiseReduction     *prometheus.GaugeVec
	vadActive          *prometheus.GaugeVec
	rmsLevel           *prometheus.GaugeVec
	gainLevel          *prometheus.GaugeVec

	streamsActive prometheus.Gauge
}

// New builds a Collector and registers its collectors against reg. Passing
// a non-nil reg is the caller's choice between a dedicated registry (tests)
// and prometheus.DefaultRegisterer (production).
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		framesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceengine",
			Name:      "frames_processed_total",
			Help:      "Frames successfully processed, by stream.",
		}, []string{"stream_id"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceengine",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped before processing, by stream and reason.",
		}, []string{"stream_id", "reason"}),
		processingError: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceengine",
			Name:      "processing_errors_total",
			Help:      "Processing errors, by stream and category.",
		}, []string{"stream_id", "category"}),
		processingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voiceengine",
			Name:      "frame_processing_seconds",
			Help:      "Wall time spent processing one frame through the pipeline.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"stream_id"}),
		noiseReduction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "voiceengine",
			Name:      "noise_reduction_ratio",
			Help:      "Most recent fractional noise reduction (1 - processedRMS/originalRMS), by stream.",
		}, []string{"stream_id"}),
		vadActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "voiceengine",
			Name:      "vad_active",
			Help:      "1 if the stream's most recent frame was voiced, else 0.",
		}, []string{"stream_id"}),
		rmsLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "voiceengine",
			Name:      "rms_level",
			Help:      "Most recent processed-frame RMS level, by stream.",
		}, []string{"stream_id"}),
		gainLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "voiceengine",
			Name:      "gain_level",
			Help:      "Current AGC gain multiplier, by stream.",
		}, []string{"stream_id"}),
		streamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voiceengine",
			Name:      "streams_active",
			Help:      "Number of currently active streams on the engine.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.framesProcessed,
			c.framesDropped,
			c.processingError,
			c.processingDuration,
			c.noiseReduction,
			c.vadActive,
			c.rmsLevel,
			c.gainLevel,
			c.streamsActive,
		)
	}

	return c
}

// RecordFrameProcessed records a successfully processed frame and its
// processing latency for streamID.
func (c *Collector) RecordFrameProcessed(streamID string, d time.Duration) {
	c.framesProcessed.WithLabelValues(streamID).Inc()
	c.processingDuration.WithLabelValues(streamID).Observe(d.Seconds())
}

// RecordFrameDropped records a frame dropped before processing for the
// given reason (e.g. "ring-full", "stream-paused").
func (c *Collector) RecordFrameDropped(streamID, reason string) {
	c.framesDropped.WithLabelValues(streamID, reason).Inc()
}

// RecordProcessingError records a processing failure in the given error
// category.
func (c *Collector) RecordProcessingError(streamID, category string) {
	c.processingError.WithLabelValues(streamID, category).Inc()
}

// UpdateNoiseReduction sets the current fractional noise reduction gauge.
func (c *Collector) UpdateNoiseReduction(streamID string, ratio float64) {
	c.noiseReduction.WithLabelValues(streamID).Set(ratio)
}

// UpdateVAD sets the voice-activity gauge to 1 or 0.
func (c *Collector) UpdateVAD(streamID string, active bool) {
	v := 0.0
	if active {
		v = 1.0
	}
	c.vadActive.WithLabelValues(streamID).Set(v)
}

// UpdateRMS sets the current RMS level gauge.
func (c *Collector) UpdateRMS(streamID string, rms float64) {
	c.rmsLevel.WithLabelValues(streamID).Set(rms)
}

// UpdateGain sets the current AGC gain gauge.
func (c *Collector) UpdateGain(streamID string, gain float64) {
	c.gainLevel.WithLabelValues(streamID).Set(gain)
}

// SetStreamsActive sets the active-stream count gauge.
func (c *Collector) SetStreamsActive(n int) {
	c.streamsActive.Set(float64(n))
}
