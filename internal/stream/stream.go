// Package stream implements the per-stream audio pipeline: a producer/
// consumer ring buffer decoupling the host callback's block size from the
// denoiser's fixed 480-sample frames, the filter chain, optional AGC, the
// denoiser adapter, and chunk assembly — generalizing the teacher's
// ProcessingPipeline (source -> chunk buffer -> processor chain ->
// analyzer) to a real-time, denoiser-framed pipeline instead of an
// overlap-buffered analysis one.
package stream

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/voiceengine/internal/chunkassembler"
	"github.com/tphakala/voiceengine/internal/denoiser"
	"github.com/tphakala/voiceengine/internal/dsp"
	engineerrors "github.com/tphakala/voiceengine/internal/errors"
	"github.com/tphakala/voiceengine/internal/logging"
)

// bytesPerSample is the wire size of one float32 PCM sample in the ring
// buffer.
const bytesPerSample = 4

// Config configures a StreamController.
type Config struct {
	SourceSampleRate int
	RingBytes        int

	AGCEnabled     bool
	AGCTargetLevel float64
	AGCMaxGain     float64

	// InputGain multiplies every incoming sample as it is written into the
	// ring, ahead of the filter chain; the caller's slice is not modified.
	InputGain float64

	DenoiserAdapter denoiser.Adapter

	ChunkDuration time.Duration

	// SilenceTimeout, if nonzero, is how long a stream may go without any
	// voiced frame before OnSilence fires — adapted from the teacher's
	// AudioHealthMonitor silence-timeout idiom.
	SilenceTimeout time.Duration
	OnSilence      func(streamID string)

	// OnMetrics, if set, receives one callback per processed frame.
	OnMetrics func(streamID string, snap Metrics)
	// OnChunk, if set, receives every chunk as it completes.
	OnChunk func(streamID string, chunk chunkassembler.Chunk)
}

// Metrics is the per-frame signal summary handed to OnMetrics, matching the
// fields a subscriber needs to feed a rolling snapshot manager.
type Metrics struct {
	Timestamp      time.Time
	RMS            float64
	Peak           float64
	VAD            float64
	NoiseReduction float64
	Gain           float64
}

// StreamController owns one stream's worth of framing, filtering, and
// chunking state. A single Engine may run many of these concurrently,
// sharing one denoiser core through the Adapter each controller was
// constructed with.
type StreamController struct {
	id     string
	cfg    Config
	logger *slog.Logger

	inputRing   *ringbuffer.RingBuffer
	resampler   *dsp.Resampler
	filterChain *dsp.Chain
	agc         *dsp.AGC
	postGate    *dsp.PostGate
	denoiserH   denoiser.Handle
	assembler   *chunkassembler.Assembler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	paused atomic.Bool
	stopOnce sync.Once
	stopped  atomic.Bool

	droppedFrames atomic.Uint64
	framesTotal   atomic.Uint64

	lastVoicedAt atomic.Int64 // unix nanos
}

// New constructs a StreamController bound to a fresh denoiser state
// obtained from cfg.DenoiserAdapter, and starts its processing loop.
func New(cfg Config) (*StreamController, error) {
	if cfg.RingBytes <= 0 {
		cfg.RingBytes = 65536
	}
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = time.Second
	}
	if cfg.SourceSampleRate <= 0 {
		cfg.SourceSampleRate = dsp.SampleRate
	}
	if cfg.InputGain <= 0 {
		cfg.InputGain = 1.0
	}

	handle, err := cfg.DenoiserAdapter.CreateState()
	if err != nil {
		return nil, engineerrors.New(err).
			Component("stream").
			Category(engineerrors.CategoryDenoiser).
			Build()
	}
	if err := cfg.DenoiserAdapter.Warmup(handle); err != nil {
		return nil, engineerrors.New(err).
			Component("stream").
			Category(engineerrors.CategoryDenoiser).
			Build()
	}

	var agc *dsp.AGC
	if cfg.AGCEnabled {
		agc = dsp.NewAGC(dsp.AGCConfig{TargetRMS: cfg.AGCTargetLevel, MaxGain: cfg.AGCMaxGain})
	}

	ctx, cancel := context.WithCancel(context.Background())

	sc := &StreamController{
		id:          uuid.NewString(),
		cfg:         cfg,
		logger:      logging.ForService("stream").With("stream_id", "pending"),
		inputRing:   ringbuffer.New(cfg.RingBytes),
		resampler:   dsp.NewResampler(cfg.SourceSampleRate, dsp.SampleRate),
		filterChain: dsp.NewVoiceChain(dsp.SampleRate),
		agc:         agc,
		postGate:    dsp.NewPostGate(),
		denoiserH:   handle,
		assembler: chunkassembler.NewAssembler(chunkassembler.Config{
			SampleRate:    dsp.SampleRate,
			ChunkDuration: cfg.ChunkDuration,
		}),
		ctx:    ctx,
		cancel: cancel,
	}
	sc.logger = logging.ForService("stream").With("stream_id", sc.id)
	sc.lastVoicedAt.Store(time.Now().UnixNano())

	sc.wg.Add(1)
	go sc.processLoop()

	if cfg.SilenceTimeout > 0 && cfg.OnSilence != nil {
		sc.wg.Add(1)
		go sc.silenceWatch()
	}

	return sc, nil
}

// ID returns the stream's generated identifier.
func (sc *StreamController) ID() string {
	return sc.id
}

// PushInput feeds host-callback PCM samples (at cfg.SourceSampleRate) into
// the stream. Returns the number of samples accepted; fewer than len(samples)
// indicates ring pressure and the remainder is dropped, counted in
// DroppedFrames.
func (sc *StreamController) PushInput(samples []float32) int {
	if sc.stopped.Load() || sc.paused.Load() {
		sc.droppedFrames.Add(uint64(len(samples)))
		return 0
	}

	gain := float32(sc.cfg.InputGain)

	buf := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		bits := math.Float32bits(s * gain)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}

	n, _ := sc.inputRing.Write(buf)
	accepted := n / bytesPerSample
	if accepted < len(samples) {
		sc.droppedFrames.Add(uint64(len(samples) - accepted))
	}
	return accepted
}

// Pause stops frame processing without tearing down any state; PushInput
// calls are dropped (and counted) while paused.
func (sc *StreamController) Pause() {
	sc.paused.Store(true)
}

// Resume reverses Pause.
func (sc *StreamController) Resume() {
	sc.paused.Store(false)
}

// DroppedFrames returns the cumulative count of samples dropped due to ring
// backpressure or a paused/stopped stream.
func (sc *StreamController) DroppedFrames() uint64 {
	return sc.droppedFrames.Load()
}

// FramesProcessed returns the cumulative count of denoiser frames run
// through the pipeline.
func (sc *StreamController) FramesProcessed() uint64 {
	return sc.framesTotal.Load()
}

// Stop halts the stream and releases its denoiser state. Idempotent.
func (sc *StreamController) Stop() {
	sc.stopOnce.Do(func() {
		sc.stopped.Store(true)
		sc.cancel()
		sc.wg.Wait()
		if err := sc.cfg.DenoiserAdapter.DestroyState(sc.denoiserH); err != nil {
			sc.logger.Warn("failed to destroy denoiser state", "error", err)
		}
		if chunk := sc.assembler.Flush(); chunk != nil && sc.cfg.OnChunk != nil {
			sc.cfg.OnChunk(sc.id, *chunk)
		}
	})
}

func (sc *StreamController) processLoop() {
	defer sc.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			sc.logger.Error("panic in stream process loop", "panic", r)
		}
	}()

	pending := make([]float32, 0, dsp.FrameSize*2)
	// frameBuf carries resampled samples that didn't fill a whole frame on
	// a given tick across to the next one, so no host-callback block size
	// ever loses audio to a tick boundary.
	frameBuf := make([]float32, 0, dsp.FrameSize*2)
	readBuf := make([]byte, dsp.FrameSize*bytesPerSample)

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sc.ctx.Done():
			return
		case <-ticker.C:
			if sc.paused.Load() {
				continue
			}
			n, _ := sc.inputRing.Read(readBuf)
			if n == 0 {
				continue
			}
			for i := 0; i+3 < n; i += 4 {
				bits := uint32(readBuf[i]) | uint32(readBuf[i+1])<<8 | uint32(readBuf[i+2])<<16 | uint32(readBuf[i+3])<<24
				pending = append(pending, math.Float32frombits(bits))
			}

			resampled := sc.resampler.Process(pending)
			pending = pending[:0]
			frameBuf = append(frameBuf, resampled...)

			nFrames := len(frameBuf) / dsp.FrameSize
			for i := 0; i < nFrames; i++ {
				var frame dsp.Frame
				copy(frame[:], frameBuf[i*dsp.FrameSize:(i+1)*dsp.FrameSize])
				sc.processFrame(&frame)
			}
			consumed := nFrames * dsp.FrameSize
			remainder := copy(frameBuf, frameBuf[consumed:])
			frameBuf = frameBuf[:remainder]
		}
	}
}

func (sc *StreamController) processFrame(in *dsp.Frame) {
	original := *in

	sc.filterChain.Process(in)
	if sc.agc != nil {
		sc.agc.Process(in)
	}

	var out dsp.Frame
	result, err := sc.cfg.DenoiserAdapter.ProcessFrame(sc.denoiserH, in, &out)
	if err != nil {
		sc.logger.Warn("denoiser processing failed", "error", err)
		out = *in
	}

	gated := sc.postGate.Process(in, &out)

	sc.framesTotal.Add(1)
	vad := float64(result.VAD)
	if vad > 0.5 {
		sc.lastVoicedAt.Store(time.Now().UnixNano())
	}

	if sc.cfg.OnMetrics != nil {
		gain := 1.0
		if sc.agc != nil {
			gain = sc.agc.Gain()
		}
		sc.cfg.OnMetrics(sc.id, Metrics{
			Timestamp:      time.Now(),
			RMS:            gated.OutputRMS,
			Peak:           gated.PeakOut,
			VAD:            vad,
			NoiseReduction: gated.NoiseReductionPercent / 100,
			Gain:           gain,
		})
	}

	chunks := sc.assembler.AddFrame(&original, &out, vad)
	if sc.cfg.OnChunk != nil {
		for _, c := range chunks {
			sc.cfg.OnChunk(sc.id, c)
		}
	}
}

func (sc *StreamController) silenceWatch() {
	defer sc.wg.Done()
	ticker := time.NewTicker(sc.cfg.SilenceTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-sc.ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, sc.lastVoicedAt.Load())
			if time.Since(last) > sc.cfg.SilenceTimeout {
				sc.cfg.OnSilence(sc.id)
			}
		}
	}
}
