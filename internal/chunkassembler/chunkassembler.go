// Package chunkassembler cuts a continuous stream of processed audio frames
// into fixed-duration chunks, keeping both the original and processed
// sample tracks plus a voice-activity timeline and per-chunk metrics,
// generalizing the teacher's byte-oriented ChunkBufferV2 to dual float
// tracks with richer metadata.
package chunkassembler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/voiceengine/internal/dsp"
)

// VADSample is one point on a chunk's voice-activity timeline: the
// continuous denoiser VAD score at a given time offset within the chunk,
// recorded once per processed frame.
type VADSample struct {
	TimeSec float64
	VAD     float64
}

// Chunk is one fixed-duration (nominally) slice of audio, carrying both the
// pre-denoise and post-denoise sample tracks plus the VAD timeline and
// metrics accumulated while it was assembled.
type Chunk struct {
	ID        string
	Index     int
	StartTime time.Time
	Duration  time.Duration

	Original  []float32
	Processed []float32

	// VADTimeline carries one (timeSec, vad) sample per processed frame, so
	// its length never exceeds ChunkDuration / 10ms.
	VADTimeline []VADSample

	// IsValid is false for a final, short residual chunk flushed below
	// the minimum duration threshold — callers may choose to discard it.
	IsValid bool

	// Metrics summarizes this chunk: mean/peak RMS, fraction voiced,
	// mean noise reduction estimate.
	Metrics Metrics
}

// Metrics summarizes one chunk's signal characteristics.
type Metrics struct {
	MeanRMSOriginal  float64
	MeanRMSProcessed float64
	PeakOriginal     float64
	PeakProcessed    float64
	// VoicedFraction is the fraction of frames whose VAD score crossed the
	// 0.5 voiced/unvoiced threshold.
	VoicedFraction float64
	// AverageVAD is the mean of the continuous per-frame VAD scores.
	AverageVAD       float64
	MeanNoiseReduced float64 // 1 - processedRMS/originalRMS, averaged over frames
}

// Config configures an Assembler.
type Config struct {
	SampleRate      int
	ChunkDuration   time.Duration
	// MinValidFraction is the fraction of ChunkDuration a final residual
	// chunk must reach to be marked valid. Defaults to 0.5.
	MinValidFraction float64
}

// Assembler accumulates (original, processed) frame pairs and slices off
// complete chunks once enough samples have accrued, following the
// teacher's accumulate-then-extract idiom but tracking two float tracks and
// per-chunk metrics instead of one byte buffer.
type Assembler struct {
	mu sync.Mutex

	sampleRate       int
	samplesPerChunk  int
	minValidFraction float64

	pendingOriginal  []float32
	pendingProcessed []float32
	pendingVAD       []VADSample

	startTime time.Time
	haveStart bool

	nextIndex int

	// accum carries running per-chunk sums and peaks so Metrics can be
	// computed without re-scanning every sample at extraction time.
	accum frameAccumulator
}

type frameAccumulator struct {
	frames            int
	sumRMSOriginal    float64
	sumRMSProcessed   float64
	peakOriginal      float64
	peakProcessed     float64
	voicedFrames      int
	sumVAD            float64
	sumNoiseReduction float64
}

func (a *frameAccumulator) reset() {
	*a = frameAccumulator{}
}

// NewAssembler builds an Assembler, defaulting MinValidFraction to 0.5 when
// unset.
func NewAssembler(cfg Config) *Assembler {
	if cfg.MinValidFraction <= 0 {
		cfg.MinValidFraction = 0.5
	}
	samplesPerChunk := int(float64(cfg.SampleRate) * cfg.ChunkDuration.Seconds())
	return &Assembler{
		sampleRate:       cfg.SampleRate,
		samplesPerChunk:  samplesPerChunk,
		minValidFraction: cfg.MinValidFraction,
	}
}

// AddFrame appends one denoiser frame's worth of original and processed
// samples, along with its continuous VAD score in [0,1], and returns any
// chunks that became complete as a result.
func (a *Assembler) AddFrame(original, processed *dsp.Frame, vad float64) []Chunk {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.haveStart {
		a.startTime = timeNow()
		a.haveStart = true
	}

	originalRMS := original.RMS()
	processedRMS := processed.RMS()

	a.accum.frames++
	a.accum.sumRMSOriginal += originalRMS
	a.accum.sumRMSProcessed += processedRMS
	if p := original.Peak(); p > a.accum.peakOriginal {
		a.accum.peakOriginal = p
	}
	if p := processed.Peak(); p > a.accum.peakProcessed {
		a.accum.peakProcessed = p
	}
	if vad > 0.5 {
		a.accum.voicedFrames++
	}
	a.accum.sumVAD += vad
	if originalRMS > 1e-9 {
		a.accum.sumNoiseReduction += 1 - processedRMS/originalRMS
	}

	timeSec := float64(len(a.pendingOriginal)) / float64(a.sampleRate)
	a.pendingVAD = append(a.pendingVAD, VADSample{TimeSec: timeSec, VAD: vad})

	a.pendingOriginal = append(a.pendingOriginal, original[:]...)
	a.pendingProcessed = append(a.pendingProcessed, processed[:]...)

	var out []Chunk
	for len(a.pendingOriginal) >= a.samplesPerChunk {
		out = append(out, a.extractChunk(a.samplesPerChunk, true))
	}
	return out
}

// Flush extracts whatever partial chunk remains as a final chunk, marking
// it valid only if its duration reaches MinValidFraction of the configured
// chunk duration. Returns nil if nothing is pending.
func (a *Assembler) Flush() *Chunk {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pendingOriginal) == 0 {
		return nil
	}

	minSamples := int(float64(a.samplesPerChunk) * a.minValidFraction)
	valid := len(a.pendingOriginal) >= minSamples
	chunk := a.extractChunk(len(a.pendingOriginal), valid)
	return &chunk
}

// extractChunk slices off the first n pending samples as a chunk. Caller
// holds the lock.
func (a *Assembler) extractChunk(n int, valid bool) Chunk {
	original := append([]float32(nil), a.pendingOriginal[:n]...)
	processed := append([]float32(nil), a.pendingProcessed[:n]...)

	vad := a.pendingVAD
	a.pendingVAD = nil

	duration := time.Duration(float64(n) / float64(a.sampleRate) * float64(time.Second))

	chunk := Chunk{
		ID:          uuid.NewString(),
		Index:       a.nextIndex,
		StartTime:   a.startTime,
		Duration:    duration,
		Original:    original,
		Processed:   processed,
		VADTimeline: vad,
		IsValid:     valid,
		Metrics:     a.accum.summarize(),
	}

	a.nextIndex++
	a.startTime = a.startTime.Add(duration)

	a.pendingOriginal = append(a.pendingOriginal[:0], a.pendingOriginal[n:]...)
	a.pendingProcessed = append(a.pendingProcessed[:0], a.pendingProcessed[n:]...)

	a.accum.reset()

	return chunk
}

func (acc *frameAccumulator) summarize() Metrics {
	if acc.frames == 0 {
		return Metrics{}
	}
	return Metrics{
		MeanRMSOriginal:  acc.sumRMSOriginal / float64(acc.frames),
		MeanRMSProcessed: acc.sumRMSProcessed / float64(acc.frames),
		PeakOriginal:     acc.peakOriginal,
		PeakProcessed:    acc.peakProcessed,
		VoicedFraction:   float64(acc.voicedFrames) / float64(acc.frames),
		AverageVAD:       acc.sumVAD / float64(acc.frames),
		MeanNoiseReduced: acc.sumNoiseReduction / float64(acc.frames),
	}
}

// timeNow is a seam so tests can avoid depending on wall-clock time if
// needed; production code just calls time.Now.
var timeNow = time.Now
