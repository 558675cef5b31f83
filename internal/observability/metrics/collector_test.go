package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, vec.WithLabelValues(labels...).(prometheus.Metric).Write(m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, vec.WithLabelValues(labels...).(prometheus.Metric).Write(m))
	return m.GetCounter().GetValue()
}

func TestRecordFrameProcessedIncrementsCounter(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordFrameProcessed("stream-1", 10*time.Millisecond)
	c.RecordFrameProcessed("stream-1", 10*time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, c.framesProcessed, "stream-1"))
}

func TestRecordFrameDroppedTracksReason(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordFrameDropped("stream-1", "ring-full")
	assert.Equal(t, 1.0, counterValue(t, c.framesDropped, "stream-1", "ring-full"))
}

func TestUpdateVADSetsGaugeToOneOrZero(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.UpdateVAD("stream-1", true)
	assert.Equal(t, 1.0, gaugeValue(t, c.vadActive, "stream-1"))

	c.UpdateVAD("stream-1", false)
	assert.Equal(t, 0.0, gaugeValue(t, c.vadActive, "stream-1"))
}

func TestUpdateNoiseReductionSetsGauge(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.UpdateNoiseReduction("stream-1", 0.42)
	assert.InDelta(t, 0.42, gaugeValue(t, c.noiseReduction, "stream-1"), 1e-9)
}

func TestSetStreamsActiveUpdatesPlainGauge(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.SetStreamsActive(3)

	m := &dto.Metric{}
	require.NoError(t, c.streamsActive.Write(m))
	assert.Equal(t, 3.0, m.GetGauge().GetValue())
}

func TestNewWithNilRegistererDoesNotPanic(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() {
		c := New(nil)
		c.RecordFrameProcessed("s", time.Millisecond)
	})
}
