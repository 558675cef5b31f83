// Package source provides AudioSource implementations that feed PCM
// samples into a StreamController: a live microphone source backed by
// malgo, and a file-backed source that replays a WAV file at its native
// sample rate. Both are generalized from the teacher's
// audiocore/sources/malgo package, which wires the same collaborator
// shape (Start/Stop/callback) to its own AudioManager instead of a
// voice-engine StreamController.
package source

import (
	"context"
	"sync/atomic"
	"time"

	engineerrors "github.com/tphakala/voiceengine/internal/errors"
	"github.com/tphakala/voiceengine/internal/wavio"
)

// SampleHandler receives a block of mono float32 PCM samples at the
// source's native sample rate.
type SampleHandler func(samples []float32)

// AudioSource is the capability-shaped collaborator a host uses to feed a
// StreamController: start delivering blocks to a handler, stop cleanly.
type AudioSource interface {
	ID() string
	SampleRate() int
	Start(ctx context.Context, handler SampleHandler) error
	Stop() error
	IsActive() bool
}

// FileSource replays a parsed WAV file's samples as fixed-size blocks on a
// ticker, matching the cadence a real audio callback would expect, which is
// useful for driving a StreamController from a file source during testing
// or file-based batch review.
type FileSource struct {
	id         string
	sampleRate int
	samples    []float32
	blockSize  int

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFileSource parses wavData and returns a FileSource over its samples.
func NewFileSource(id string, wavData []byte, blockSize int) (*FileSource, error) {
	pcm, sampleRate, err := wavio.ParseWAV(wavData)
	if err != nil {
		return nil, err
	}
	if blockSize <= 0 {
		blockSize = 480
	}

	samples := make([]float32, len(pcm))
	for i, s := range pcm {
		samples[i] = float32(s) / 32768.0
	}

	return &FileSource{
		id:         id,
		sampleRate: sampleRate,
		samples:    samples,
		blockSize:  blockSize,
	}, nil
}

// ID returns the source's identifier.
func (f *FileSource) ID() string { return f.id }

// SampleRate returns the file's native sample rate.
func (f *FileSource) SampleRate() int { return f.sampleRate }

// IsActive reports whether Start has been called and Stop has not.
func (f *FileSource) IsActive() bool { return f.running.Load() }

// Start replays the file's samples to handler in blockSize chunks, paced by
// a ticker at the block's real-time duration, until the file is exhausted
// or ctx is cancelled.
func (f *FileSource) Start(ctx context.Context, handler SampleHandler) error {
	if !f.running.CompareAndSwap(false, true) {
		return engineerrors.New(nil).
			Component("source").
			Category(engineerrors.CategoryState).
			Build()
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})

	go func() {
		defer close(f.done)
		defer f.running.Store(false)

		blockDuration := time.Duration(float64(f.blockSize)/float64(f.sampleRate)*1000) * time.Millisecond
		ticker := time.NewTicker(blockDuration)
		defer ticker.Stop()

		offset := 0
		for offset < len(f.samples) {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				end := offset + f.blockSize
				if end > len(f.samples) {
					end = len(f.samples)
				}
				handler(f.samples[offset:end])
				offset = end
			}
		}
	}()

	return nil
}

// Stop cancels playback and waits for the replay goroutine to exit.
func (f *FileSource) Stop() error {
	if f.cancel != nil {
		f.cancel()
	}
	if f.done != nil {
		<-f.done
	}
	return nil
}
