// Package engine ties together the per-stream pipeline, the denoiser
// adapter, the metrics manager, and the lifecycle state machine into the
// single entry point a host embeds: construct an Engine, Initialize it,
// call ProcessStream/ProcessFile, and Destroy it on teardown.
package engine

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/tphakala/voiceengine/internal/chunkassembler"
	"github.com/tphakala/voiceengine/internal/config"
	"github.com/tphakala/voiceengine/internal/denoiser"
	"github.com/tphakala/voiceengine/internal/dsp"
	engineerrors "github.com/tphakala/voiceengine/internal/errors"
	"github.com/tphakala/voiceengine/internal/logging"
	"github.com/tphakala/voiceengine/internal/metricsmgr"
	"github.com/tphakala/voiceengine/internal/stream"
	"github.com/tphakala/voiceengine/internal/wavio"
)

// Version is the engine's reported build version, surfaced in Diagnostics.
const Version = "0.1.0"

// errorHistorySize bounds the ErrorRecord ring the same way the teacher
// bounds its resource-tracker and health-monitor history slices: a small
// fixed-size slice with a modulo write index, no third-party ring type
// needed at ten entries.
const errorHistorySize = 10

// ErrorRecord is one entry in the engine's bounded error history.
type ErrorRecord struct {
	Timestamp time.Time
	Kind      string
	Message   string
}

// HostInfo describes the runtime the engine is embedded in. This is the
// direct rename of a browser-oriented diagnostics field to something that
// makes sense for a native host process.
type HostInfo struct {
	OS   string
	Arch string
}

// Diagnostics is a read-only snapshot of engine health.
type Diagnostics struct {
	State            State
	DenoiserLoaded   bool
	ActiveStreams    int
	Version          string
	Host             HostInfo
	RecentErrors     []ErrorRecord
}

// ChunkOptions sets the chunk duration of the chunk assembler every stream
// runs. A nil value or a non-positive ChunkDurationMs uses one second; a
// stream is never started without an assembler.
type ChunkOptions struct {
	ChunkDurationMs int
}

// Engine owns the denoiser adapter, the lifecycle state machine, the event
// bus, and every active StreamController. Only one Engine per process is
// typical, but nothing here assumes a singleton.
type Engine struct {
	mu    sync.RWMutex
	state State

	cfg     config.EngineConfig
	adapter denoiser.Adapter

	streams map[string]*stream.StreamController

	metrics *metricsmgr.Manager
	events  *eventBus
	logger  *slog.Logger

	errHistory   [errorHistorySize]ErrorRecord
	errCount     int
	errNext      int
	errMu        sync.Mutex

	initOnce sync.Once
	initErr  error

	cleanupTimer *time.Timer
	cleanupMu    sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs an Engine in the uninitialized state. adapter is the
// denoiser.Adapter Initialize and every stream will use; pass nil to fall
// back to denoiser.NewNoopAdapter (degraded-by-default, useful for tests and
// hosts with no real denoiser bundled).
func New(cfg config.EngineConfig, adapter denoiser.Adapter) (*Engine, error) {
	validated, err := config.New(cfg)
	if err != nil {
		return nil, err
	}
	if adapter == nil {
		adapter = denoiser.NewNoopAdapter()
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		state:   StateUninitialized,
		cfg:     validated,
		adapter: adapter,
		streams: make(map[string]*stream.StreamController),
		metrics: metricsmgr.NewManager(metricsmgr.Config{}),
		events:  newEventBus(),
		logger:  logging.ForService("engine"),
		ctx:     ctx,
		cancel:  cancel,
	}
	e.metrics.Start(ctx)
	return e, nil
}

// On registers fn for the named lifecycle event. See spec event names:
// state-change, metrics-update, chunk, processing-start, processing-end,
// error, degraded-mode, destroyed.
func (e *Engine) On(event string, fn func(any)) {
	e.events.On(event, fn)
}

// Initialize probes the denoiser adapter, warms it up with silent frames,
// and transitions the engine to ready (or degraded/error). Concurrent
// callers share the first in-flight call's result.
func (e *Engine) Initialize() error {
	e.initOnce.Do(func() {
		e.setState(StateInitializing)

		handle, err := e.adapter.CreateState()
		if err != nil {
			e.handleInitFailure(err)
			return
		}
		defer func() {
			_ = e.adapter.DestroyState(handle)
		}()

		if err := e.adapter.Warmup(handle); err != nil {
			e.handleInitFailure(err)
			return
		}

		var silent, out dsp.Frame
		for i := 0; i < 10; i++ {
			if _, err := e.adapter.ProcessFrame(handle, &silent, &out); err != nil {
				e.handleInitFailure(err)
				return
			}
		}

		e.setState(StateReady)
	})

	return e.initErr
}

func (e *Engine) handleInitFailure(cause error) {
	if e.cfg.AllowDegraded {
		e.recordError("InitializationFailed", cause.Error())
		e.setState(StateDegraded)
		e.events.Emit("degraded-mode", cause)
		return
	}
	e.initErr = engineerrors.New(cause).
		Component("engine").
		Category(engineerrors.CategoryLifecycle).
		Build()
	e.recordError("InitializationFailed", cause.Error())
	e.setState(StateError)
}

// ProcessStream creates a new StreamController bound to this engine's
// denoiser adapter, registers it, and transitions the engine to
// processing. Requires the engine to be ready, processing, paused, or
// degraded.
func (e *Engine) ProcessStream(sourceSampleRate int, chunkOpts *ChunkOptions) (*stream.StreamController, error) {
	e.mu.RLock()
	cur := e.state
	e.mu.RUnlock()

	switch cur {
	case StateReady, StateProcessing, StatePaused, StateDegraded:
	default:
		return nil, engineerrors.Newf("cannot start stream from state %s", cur).
			Component("engine").
			Category(engineerrors.CategoryState).
			Build()
	}

	chunkDuration := time.Second
	if chunkOpts != nil && chunkOpts.ChunkDurationMs > 0 {
		chunkDuration = time.Duration(chunkOpts.ChunkDurationMs) * time.Millisecond
	}

	sc, err := stream.New(stream.Config{
		SourceSampleRate: sourceSampleRate,
		AGCEnabled:       e.cfg.AGCEnabled,
		AGCTargetLevel:   e.cfg.AGCTargetLevel,
		AGCMaxGain:       e.cfg.AGCMaxGain,
		InputGain:        e.cfg.InputGain,
		DenoiserAdapter:  e.adapter,
		ChunkDuration:    chunkDuration,
		OnMetrics:        e.onStreamMetrics,
		OnChunk:          e.onStreamChunk,
	})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.streams[sc.ID()] = sc
	e.cancelCleanupTimer()
	e.mu.Unlock()

	e.setState(StateProcessing)
	e.events.Emit("processing-start", sc.ID())
	return sc, nil
}

func (e *Engine) onStreamMetrics(streamID string, m stream.Metrics) {
	e.metrics.Update(streamID, metricsmgr.Snapshot{
		Timestamp:      m.Timestamp,
		RMS:            m.RMS,
		Peak:           m.Peak,
		VAD:            m.VAD,
		NoiseReduction: m.NoiseReduction,
	})
	e.events.Emit("metrics-update", m)
}

func (e *Engine) onStreamChunk(streamID string, chunk chunkassembler.Chunk) {
	e.events.Emit("chunk", chunk)
}

// StopStream stops and unregisters the stream with the given id.
func (e *Engine) StopStream(streamID string) {
	e.mu.Lock()
	sc, ok := e.streams[streamID]
	if ok {
		delete(e.streams, streamID)
	}
	remaining := len(e.streams)
	e.mu.Unlock()

	if !ok {
		return
	}
	sc.Stop()
	e.events.Emit("processing-end", streamID)

	if remaining == 0 {
		e.setState(StateReady)
		e.armCleanupTimer()
	}
}

// ProcessFile runs the full frame pipeline over a WAV byte buffer to
// completion, with no chunking, and returns the re-encoded result.
func (e *Engine) ProcessFile(data []byte) ([]byte, error) {
	pcm, sampleRate, err := wavio.ParseWAV(data)
	if err != nil {
		return nil, err
	}

	samples := make([]float32, len(pcm))
	for i, s := range pcm {
		samples[i] = float32(s) / 32768.0
	}

	var mu sync.Mutex
	processed := make([]float32, 0, len(samples))

	sc, err := stream.New(stream.Config{
		SourceSampleRate: sampleRate,
		AGCEnabled:       e.cfg.AGCEnabled,
		AGCTargetLevel:   e.cfg.AGCTargetLevel,
		AGCMaxGain:       e.cfg.AGCMaxGain,
		InputGain:        e.cfg.InputGain,
		DenoiserAdapter:  e.adapter,
		ChunkDuration:    time.Hour,
		OnChunk: func(_ string, c chunkassembler.Chunk) {
			mu.Lock()
			processed = append(processed, c.Processed...)
			mu.Unlock()
		},
	})
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(5 * time.Second)
	for off := 0; off < len(samples) && time.Now().Before(deadline); {
		if n := sc.PushInput(samples[off:]); n > 0 {
			off += n
			deadline = time.Now().Add(5 * time.Second)
		} else {
			time.Sleep(time.Millisecond)
		}
	}

	wantFrames := uint64(len(samples) / 480)
	if sampleRate > 0 {
		wantFrames = uint64(len(samples)) * 48000 / uint64(sampleRate) / 480
	}
	for sc.FramesProcessed() < wantFrames && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	sc.Stop()

	mu.Lock()
	out := make([]int16, len(processed))
	for i, s := range processed {
		out[i] = int16(clampFloat(s, -1, 1) * 32767)
	}
	mu.Unlock()

	return wavio.EncodeWAV(out, 48000), nil
}

func clampFloat(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetInputGain reconfigures the per-sample input gain applied before the
// filter chain. Stream controllers created after this call pick up the new
// gain via cfg; streams already running keep the gain they were started
// with.
func (e *Engine) SetInputGain(g float64) {
	if g < 0.5 {
		g = 0.5
	}
	if g > 10.0 {
		g = 10.0
	}
	e.mu.Lock()
	e.cfg.InputGain = g
	e.mu.Unlock()
}

// SetAgcEnabled toggles AGC for streams created after this call.
func (e *Engine) SetAgcEnabled(enabled bool) {
	e.mu.Lock()
	e.cfg.AGCEnabled = enabled
	e.mu.Unlock()
}

// SetAgcTargetLevel reconfigures the AGC target for streams created after
// this call. t is clamped to (0, 1].
func (e *Engine) SetAgcTargetLevel(t float64) {
	if t <= 0 {
		t = 0.01
	}
	if t > 1.0 {
		t = 1.0
	}
	e.mu.Lock()
	e.cfg.AGCTargetLevel = t
	e.mu.Unlock()
}

// Destroy stops every active stream and tears the engine down. If force is
// false and streams remain, it fails with ActiveStreamsPresent.
func (e *Engine) Destroy(force bool) error {
	e.mu.Lock()
	active := len(e.streams)
	if active > 0 && !force {
		e.mu.Unlock()
		return engineerrors.Newf("%d active streams present", active).
			Component("engine").
			Category(engineerrors.CategoryState).
			Context("active_streams", active).
			Build()
	}
	cur := e.state
	e.mu.Unlock()

	if !CanTransition(cur, StateDestroying) {
		return engineerrors.Newf("cannot destroy from state %s", cur).
			Component("engine").
			Category(engineerrors.CategoryState).
			Build()
	}
	e.setState(StateDestroying)

	e.mu.Lock()
	streams := make([]*stream.StreamController, 0, len(e.streams))
	for _, sc := range e.streams {
		streams = append(streams, sc)
	}
	e.streams = make(map[string]*stream.StreamController)
	e.mu.Unlock()

	for _, sc := range streams {
		sc.Stop()
	}

	e.cleanupMu.Lock()
	if e.cleanupTimer != nil {
		e.cleanupTimer.Stop()
		e.cleanupTimer = nil
	}
	e.cleanupMu.Unlock()

	e.metrics.Stop()
	e.cancel()

	e.setState(StateDestroyed)
	e.events.Emit("destroyed", nil)
	return nil
}

// GetDiagnostics returns a point-in-time snapshot of engine health.
func (e *Engine) GetDiagnostics() Diagnostics {
	e.mu.RLock()
	st := e.state
	active := len(e.streams)
	e.mu.RUnlock()

	e.errMu.Lock()
	errs := make([]ErrorRecord, e.errCount)
	for i := 0; i < e.errCount; i++ {
		idx := (e.errNext - e.errCount + i + errorHistorySize) % errorHistorySize
		errs[i] = e.errHistory[idx]
	}
	e.errMu.Unlock()

	return Diagnostics{
		State:          st,
		DenoiserLoaded: st == StateReady || st == StateProcessing || st == StatePaused,
		ActiveStreams:  active,
		Version:        Version,
		Host: HostInfo{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
		RecentErrors: errs,
	}
}

func (e *Engine) setState(next State) {
	e.mu.Lock()
	prev := e.state
	if !CanTransition(prev, next) && prev != next {
		e.mu.Unlock()
		e.logger.Warn("rejected illegal state transition", "from", prev, "to", next)
		return
	}
	e.state = next
	e.mu.Unlock()

	if prev != next {
		e.events.Emit("state-change", [2]State{prev, next})
	}
}

func (e *Engine) recordError(kind, message string) {
	e.errMu.Lock()
	defer e.errMu.Unlock()

	rec := ErrorRecord{Timestamp: time.Now(), Kind: kind, Message: message}
	e.errHistory[e.errNext] = rec
	e.errNext = (e.errNext + 1) % errorHistorySize
	if e.errCount < errorHistorySize {
		e.errCount++
	}
	e.events.Emit("error", rec)
}

// armCleanupTimer starts (or restarts) the auto-cleanup timer if
// AutoCleanup is enabled. Firing calls Destroy(false), logging rather than
// propagating any failure since there is no subscriber to hand it to.
func (e *Engine) armCleanupTimer() {
	if !e.cfg.AutoCleanup {
		return
	}
	e.cleanupMu.Lock()
	defer e.cleanupMu.Unlock()

	if e.cleanupTimer != nil {
		e.cleanupTimer.Stop()
	}
	delay := time.Duration(e.cfg.CleanupDelayMs) * time.Millisecond
	e.cleanupTimer = time.AfterFunc(delay, func() {
		if err := e.Destroy(false); err != nil {
			e.logger.Warn("auto-cleanup destroy failed", "error", err)
		}
	})
}

// cancelCleanupTimer stops a pending auto-cleanup timer.
func (e *Engine) cancelCleanupTimer() {
	e.cleanupMu.Lock()
	defer e.cleanupMu.Unlock()
	if e.cleanupTimer != nil {
		e.cleanupTimer.Stop()
		e.cleanupTimer = nil
	}
}
