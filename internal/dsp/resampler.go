package dsp

// Resampler converts mono float32 PCM between sample rates with linear
// interpolation, replicating the boundary sample rather than reading past
// the end of the input.
type Resampler struct {
	srcRate, dstRate int
	// phase carries the fractional source-sample position across calls
	// so a stream of chunks resamples as if it were one continuous signal.
	phase float64
}

// NewResampler builds a resampler from srcRate to dstRate. If the rates are
// equal, Process still copies the input through untouched.
func NewResampler(srcRate, dstRate int) *Resampler {
	return &Resampler{srcRate: srcRate, dstRate: dstRate}
}

// Process resamples in, appending the result to the returned slice. The
// returned slice length is proportional to dstRate/srcRate and varies
// sample-by-sample depending on carried phase.
func (r *Resampler) Process(in []float32) []float32 {
	if r.srcRate == r.dstRate {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	if len(in) == 0 {
		return nil
	}

	ratio := float64(r.srcRate) / float64(r.dstRate)
	var out []float32

	pos := r.phase
	for {
		i0 := int(pos)
		if i0 >= len(in) {
			break
		}
		frac := pos - float64(i0)

		var sample float64
		if i0+1 < len(in) {
			sample = float64(in[i0])*(1-frac) + float64(in[i0+1])*frac
		} else {
			sample = float64(in[i0])
		}

		out = append(out, float32(sample))
		pos += ratio
	}

	r.phase = pos - float64(len(in))
	if r.phase < 0 {
		r.phase = 0
	}

	return out
}

// Reset clears carried interpolation phase, e.g. on stream restart.
func (r *Resampler) Reset() {
	r.phase = 0
}
