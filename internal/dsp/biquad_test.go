package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighpassAttenuatesDC(t *testing.T) {
	t.Parallel()
	bq := NewHighpass(80, 0.7, SampleRate)

	// Feed a long DC run; a highpass must drive steady-state output to ~0.
	var last float64
	for i := 0; i < 5000; i++ {
		last = bq.Process(1.0)
	}
	assert.InDelta(t, 0.0, last, 0.01)
}

func TestHighpassPassesHighFrequency(t *testing.T) {
	t.Parallel()
	bq := NewHighpass(80, 0.7, SampleRate)

	// A tone well above the cutoff should pass through close to unity gain
	// once the filter settles.
	freq := 4000.0
	var peak float64
	for i := 0; i < 2000; i++ {
		x := math.Sin(2 * math.Pi * freq * float64(i) / SampleRate)
		y := bq.Process(x)
		if i > 1000 {
			a := math.Abs(y)
			if a > peak {
				peak = a
			}
		}
	}
	assert.Greater(t, peak, 0.8)
}

func TestNotchAttenuatesTargetFrequency(t *testing.T) {
	t.Parallel()
	bq := NewNotch(1000, 30, SampleRate)

	var peak float64
	for i := 0; i < 4000; i++ {
		x := math.Sin(2 * math.Pi * 1000 * float64(i) / SampleRate)
		y := bq.Process(x)
		if i > 2000 {
			a := math.Abs(y)
			if a > peak {
				peak = a
			}
		}
	}
	assert.Less(t, peak, 0.2)
}

func TestLowshelfReducesLowFrequencyGain(t *testing.T) {
	t.Parallel()
	bq := NewLowshelf(200, -3, 0.707, SampleRate)

	var peak float64
	for i := 0; i < 4000; i++ {
		x := math.Sin(2 * math.Pi * 50 * float64(i) / SampleRate)
		y := bq.Process(x)
		if i > 3000 {
			a := math.Abs(y)
			if a > peak {
				peak = a
			}
		}
	}
	assert.Less(t, peak, 1.0)
	assert.Greater(t, peak, 0.5)
}

func TestVoiceChainAppliesAllStagesInSeries(t *testing.T) {
	t.Parallel()
	chain := NewVoiceChain(SampleRate)
	require.Len(t, chain.stages, 4)

	var f Frame
	for i := range f {
		f[i] = float32(math.Sin(2 * math.Pi * 1000 * float64(i) / SampleRate))
	}
	chain.Process(&f)

	// The 1kHz notch stage should have driven this tone's energy down.
	assert.Less(t, f.RMS(), 0.5)
}
