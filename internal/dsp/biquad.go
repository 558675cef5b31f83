package dsp

import "math"

// BiquadKind identifies which cookbook formula produced a filter's
// coefficients.
type BiquadKind string

const (
	BiquadHighpass BiquadKind = "highpass"
	BiquadNotch    BiquadKind = "notch"
	BiquadLowshelf BiquadKind = "lowshelf"
)

// Biquad is a direct-form-I second order IIR section with its own state, so
// a chain of them can run per-stream without interference.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 float64
	y1, y2 float64
}

// NewHighpass builds an RBJ-cookbook highpass section at freq Hz with
// quality Q, sampled at sampleRate.
func NewHighpass(freq, q float64, sampleRate float64) *Biquad {
	w0 := 2 * math.Pi * freq / sampleRate
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	alpha := sinW0 / (2 * q)

	b0 := (1 + cosW0) / 2
	b1 := -(1 + cosW0)
	b2 := (1 + cosW0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

// NewNotch builds an RBJ-cookbook notch (band-reject) section at freq Hz
// with quality Q.
func NewNotch(freq, q float64, sampleRate float64) *Biquad {
	w0 := 2 * math.Pi * freq / sampleRate
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	alpha := sinW0 / (2 * q)

	b0 := 1.0
	b1 := -2 * cosW0
	b2 := 1.0
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

// NewLowshelf builds an RBJ-cookbook low-shelf section at freq Hz with
// shelf gain gainDB and quality q (NewVoiceChain passes 0.707).
func NewLowshelf(freq, gainDB, q float64, sampleRate float64) *Biquad {
	w0 := 2 * math.Pi * freq / sampleRate
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	a := math.Pow(10, gainDB/40)
	alpha := sinW0 / (2 * q)
	twoSqrtAAlpha := 2 * math.Sqrt(a) * alpha

	b0 := a * ((a + 1) - (a-1)*cosW0 + twoSqrtAAlpha)
	b1 := 2 * a * ((a - 1) - (a+1)*cosW0)
	b2 := a * ((a + 1) - (a-1)*cosW0 - twoSqrtAAlpha)
	a0 := (a + 1) + (a-1)*cosW0 + twoSqrtAAlpha
	a1 := -2 * ((a - 1) + (a+1)*cosW0)
	a2 := (a + 1) + (a-1)*cosW0 - twoSqrtAAlpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

func normalize(b0, b1, b2, a0, a1, a2 float64) *Biquad {
	return &Biquad{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

// Process filters a single sample through the section, updating its state.
func (bq *Biquad) Process(x float64) float64 {
	y := bq.b0*x + bq.b1*bq.x1 + bq.b2*bq.x2 - bq.a1*bq.y1 - bq.a2*bq.y2
	bq.x2, bq.x1 = bq.x1, x
	bq.y2, bq.y1 = bq.y1, y
	return y
}

// ProcessFrame filters every sample of a frame in place.
func (bq *Biquad) ProcessFrame(f *Frame) {
	for i := range f {
		f[i] = float32(bq.Process(float64(f[i])))
	}
}

// Chain is an ordered sequence of biquad sections applied to a frame in
// series, one stream's worth of filter state.
type Chain struct {
	stages []*Biquad
}

// NewVoiceChain builds the fixed four-stage chain from spec.md §4.2:
// highpass 80Hz Q=0.7, notch 1kHz Q=30, notch 2kHz Q=30, lowshelf 200Hz
// gain=-3dB Q=0.707 (default, per the Open Question in spec.md §9).
func NewVoiceChain(sampleRate float64) *Chain {
	return &Chain{stages: []*Biquad{
		NewHighpass(80, 0.7, sampleRate),
		NewNotch(1000, 30, sampleRate),
		NewNotch(2000, 30, sampleRate),
		NewLowshelf(200, -3, 0.707, sampleRate),
	}}
}

// Process runs a frame through every stage in series, in place.
func (c *Chain) Process(f *Frame) {
	for _, stage := range c.stages {
		stage.ProcessFrame(f)
	}
}
