//go:build !nomalgo

package source

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	engineerrors "github.com/tphakala/voiceengine/internal/errors"
)

// MicConfig configures a MicSource's device selection and capture format.
type MicConfig struct {
	DeviceName   string
	SampleRate   uint32
	BufferFrames uint32
}

// MicSource captures mono PCM from the host's default (or named) input
// device via malgo, converting frames to float32 and handing them to the
// registered SampleHandler — the live-capture analog of FileSource,
// grounded on the teacher's MalgoSource Start/Stop/onAudioData shape.
type MicSource struct {
	id  string
	cfg MicConfig

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running atomic.Bool
	cancel  context.CancelFunc
}

// NewMicSource constructs a MicSource with defaults applied to zero-valued
// MicConfig fields.
func NewMicSource(id string, cfg MicConfig) *MicSource {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.BufferFrames == 0 {
		cfg.BufferFrames = 480
	}
	return &MicSource{id: id, cfg: cfg}
}

// ID returns the source's identifier.
func (m *MicSource) ID() string { return m.id }

// SampleRate returns the configured capture sample rate.
func (m *MicSource) SampleRate() int { return int(m.cfg.SampleRate) }

// IsActive reports whether the device is currently capturing.
func (m *MicSource) IsActive() bool { return m.running.Load() }

func backendForPlatform() malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendNull
	}
}

// Start opens the capture device and begins delivering blocks to handler
// until ctx is cancelled or Stop is called.
func (m *MicSource) Start(ctx context.Context, handler SampleHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return engineerrors.New(nil).
			Component("source").
			Category(engineerrors.CategoryState).
			Build()
	}

	malgoCtx, err := malgo.InitContext([]malgo.Backend{backendForPlatform()}, malgo.ContextConfig{}, nil)
	if err != nil {
		return engineerrors.New(err).
			Component("source").
			Category(engineerrors.CategoryResource).
			Context("operation", "init_context").
			Build()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = m.cfg.SampleRate
	deviceConfig.PeriodSizeInFrames = m.cfg.BufferFrames

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			samples := make([]float32, frameCount)
			for i := range samples {
				bits := uint16(input[i*2]) | uint16(input[i*2+1])<<8
				samples[i] = float32(int16(bits)) / 32768.0
			}
			handler(samples)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return engineerrors.New(err).
			Component("source").
			Category(engineerrors.CategoryResource).
			Context("operation", "init_device").
			Build()
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return engineerrors.New(err).
			Component("source").
			Category(engineerrors.CategoryResource).
			Context("operation", "start_device").
			Build()
	}

	m.ctx = malgoCtx
	m.device = device
	m.running.Store(true)

	go func() {
		<-runCtx.Done()
		_ = m.Stop()
	}()

	return nil
}

// Stop halts capture and releases the device and context.
func (m *MicSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running.Load() {
		return nil
	}

	if m.cancel != nil {
		m.cancel()
	}
	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		_ = m.ctx.Uninit()
		m.ctx = nil
	}
	m.running.Store(false)
	return nil
}
