// Package denoiser defines the collaborator interface the frame pipeline
// uses to run noise reduction, plus the degraded no-op fallback used when a
// real denoiser state cannot be obtained.
package denoiser

import (
	"github.com/tphakala/voiceengine/internal/dsp"
	engineerrors "github.com/tphakala/voiceengine/internal/errors"
)

// Handle identifies one denoiser processing state, obtained from an Adapter
// and released back to it when a stream is done with it.
type Handle uint64

// Result is the outcome of processing a single frame.
type Result struct {
	// VAD is the voice-activity estimate for this frame, in [0, 1].
	VAD float32
}

// Adapter is the capability-shaped collaborator the stream pipeline drives:
// obtain a state, warm it up, process frames through it, and eventually
// destroy it. Implementations decide what "state" means (a native model
// handle, an arena slot, or nothing at all for the no-op fallback).
type Adapter interface {
	// CreateState allocates a new processing state and returns a handle
	// to it.
	CreateState() (Handle, error)
	// DestroyState releases the state associated with handle. Safe to
	// call at most once per handle.
	DestroyState(h Handle) error
	// Warmup primes a freshly created state (e.g. loading a model) so
	// the first real frame isn't slowed down by lazy initialization.
	Warmup(h Handle) error
	// ProcessFrame denoises in using the state behind h, writing the
	// result into out (which may alias in). Returns the frame's VAD
	// result.
	ProcessFrame(h Handle, in, out *dsp.Frame) (Result, error)
}

// NoopAdapter is the degraded-mode fallback used when no real denoiser
// implementation is available (model failed to load, allowDegraded is
// set). It passes audio through unmodified and derives a VAD estimate from
// the ratio of output to input RMS, which is 1 for any non-silent frame
// since it does not suppress anything, and 0 for an all-zero frame.
type NoopAdapter struct {
	nextHandle uint64
}

// NewNoopAdapter constructs a NoopAdapter.
func NewNoopAdapter() *NoopAdapter {
	return &NoopAdapter{}
}

// CreateState always succeeds, returning a fresh, otherwise meaningless,
// handle value.
func (n *NoopAdapter) CreateState() (Handle, error) {
	n.nextHandle++
	return Handle(n.nextHandle), nil
}

// DestroyState is a no-op.
func (n *NoopAdapter) DestroyState(Handle) error {
	return nil
}

// Warmup is a no-op.
func (n *NoopAdapter) Warmup(Handle) error {
	return nil
}

// ProcessFrame copies in to out unchanged and estimates VAD as
// outputRMS/(inputRMS+epsilon), matching spec's degraded-mode formula.
func (n *NoopAdapter) ProcessFrame(_ Handle, in, out *dsp.Frame) (Result, error) {
	*out = *in

	const epsilon = 1e-9
	inRMS := in.RMS()
	outRMS := out.RMS()
	vad := outRMS / (inRMS + epsilon)
	if vad > 1 {
		vad = 1
	}

	return Result{VAD: float32(vad)}, nil
}

// newStateNotFoundError builds the error arena-backed adapters return when a
// handle does not correspond to a live state.
func newStateNotFoundError(h Handle) error {
	return engineerrors.New(nil).
		Component("denoiser").
		Category(engineerrors.CategoryNotFound).
		Context("handle", uint64(h)).
		Build()
}
