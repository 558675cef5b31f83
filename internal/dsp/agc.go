package dsp

import "math"

// AGC is an automatic gain controller that nudges frame RMS toward a target
// level, attacking fast on overshoot and releasing slowly on undershoot, so
// gain doesn't pump on transients.
type AGC struct {
	targetRMS float64
	maxGain   float64
	attack    float64
	release   float64

	gain float64
}

// AGCConfig configures a new AGC instance.
type AGCConfig struct {
	TargetRMS float64
	MaxGain   float64
	// AttackSeconds/ReleaseSeconds are the time constants for gain
	// decrease (attack, fast) and gain increase (release, slow).
	AttackSeconds  float64
	ReleaseSeconds float64
}

// NewAGC builds an AGC with sane defaults for any zero-valued fields.
func NewAGC(cfg AGCConfig) *AGC {
	if cfg.TargetRMS <= 0 {
		cfg.TargetRMS = 0.1
	}
	if cfg.MaxGain <= 0 {
		cfg.MaxGain = 4.0
	}
	if cfg.AttackSeconds <= 0 {
		cfg.AttackSeconds = 0.005
	}
	if cfg.ReleaseSeconds <= 0 {
		cfg.ReleaseSeconds = 0.2
	}

	frameSeconds := float64(FrameSize) / float64(SampleRate)
	return &AGC{
		targetRMS: cfg.TargetRMS,
		maxGain:   cfg.MaxGain,
		attack:    timeConstantToCoeff(cfg.AttackSeconds, frameSeconds),
		release:   timeConstantToCoeff(cfg.ReleaseSeconds, frameSeconds),
		gain:      1.0,
	}
}

// timeConstantToCoeff converts a time constant (seconds) into a per-frame
// exponential smoothing coefficient.
func timeConstantToCoeff(timeConstant, frameSeconds float64) float64 {
	return 1 - math.Exp(-frameSeconds/timeConstant)
}

// Process measures the frame's RMS, updates the smoothed gain estimate, and
// applies it in place. Returns the gain that was applied.
func (a *AGC) Process(f *Frame) float64 {
	rms := f.RMS()
	if rms < 1e-9 {
		f.Scale(a.gain)
		return a.gain
	}

	desired := a.targetRMS / rms
	if desired > a.maxGain {
		desired = a.maxGain
	}

	coeff := a.release
	if desired < a.gain {
		coeff = a.attack
	}
	a.gain += coeff * (desired - a.gain)

	f.Scale(a.gain)
	return a.gain
}

// Gain returns the current smoothed gain value.
func (a *AGC) Gain() float64 {
	return a.gain
}

// Reset returns the AGC to unity gain, e.g. on stream restart.
func (a *AGC) Reset() {
	a.gain = 1.0
}
