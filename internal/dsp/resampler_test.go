package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResamplerIdentityPassesThrough(t *testing.T) {
	t.Parallel()
	r := NewResampler(48000, 48000)
	in := []float32{0.1, 0.2, 0.3, 0.4}
	out := r.Process(in)
	assert.Equal(t, in, out)
}

func TestResamplerUpsampleProducesMoreSamples(t *testing.T) {
	t.Parallel()
	r := NewResampler(16000, 48000)
	in := make([]float32, 160)
	for i := range in {
		in[i] = 0.5
	}
	out := r.Process(in)
	require.NotEmpty(t, out)
	assert.InDelta(t, 480, len(out), 4)
}

func TestResamplerDownsampleProducesFewerSamples(t *testing.T) {
	t.Parallel()
	r := NewResampler(48000, 16000)
	in := make([]float32, 480)
	for i := range in {
		in[i] = 0.5
	}
	out := r.Process(in)
	require.NotEmpty(t, out)
	assert.InDelta(t, 160, len(out), 4)
}

func TestResamplerConstantSignalStaysConstant(t *testing.T) {
	t.Parallel()
	r := NewResampler(44100, 48000)
	in := make([]float32, 441)
	for i := range in {
		in[i] = 0.3
	}
	out := r.Process(in)
	for _, s := range out {
		assert.InDelta(t, 0.3, float64(s), 1e-5)
	}
}

func TestResamplerEmptyInputReturnsEmptyOutput(t *testing.T) {
	t.Parallel()
	r := NewResampler(44100, 48000)
	out := r.Process(nil)
	assert.Empty(t, out)
}

func TestResamplerResetClearsCarriedPhase(t *testing.T) {
	t.Parallel()
	r := NewResampler(44100, 48000)
	r.Process(make([]float32, 100))
	r.Reset()
	assert.Equal(t, 0.0, r.phase)
}
