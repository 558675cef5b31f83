// Package dsp implements the per-frame signal-processing chain: biquad
// filters, automatic gain control, linear resampling, and the energy
// statistics the rest of the engine keys its decisions on.
package dsp

import "math"

// FrameSize is the fixed number of samples the denoiser and the rest of the
// pipeline operate on: 10ms at 48kHz.
const FrameSize = 480

// SampleRate is the engine's only supported processing rate.
const SampleRate = 48000

// Frame is exactly one denoiser-sized block of mono float32 PCM. Using a
// fixed-size array (not a slice) keeps it stack-allocatable and keeps the
// hot path allocation-free.
type Frame [FrameSize]float32

// RMS returns the root-mean-square level of the frame.
func (f *Frame) RMS() float64 {
	var sum float64
	for _, s := range f {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(FrameSize))
}

// Peak returns the maximum absolute sample value in the frame.
func (f *Frame) Peak() float64 {
	var peak float64
	for _, s := range f {
		a := float64(s)
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	return peak
}

// Scale multiplies every sample in the frame by gain, in place.
func (f *Frame) Scale(gain float64) {
	for i := range f {
		f[i] = float32(float64(f[i]) * gain)
	}
}
