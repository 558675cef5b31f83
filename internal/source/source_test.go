package source

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/voiceengine/internal/wavio"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testWAV(t *testing.T, sampleRate int, n int) []byte {
	t.Helper()
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = int16(i % 100)
	}
	return wavio.EncodeWAV(pcm, sampleRate)
}

func TestNewFileSourceParsesSampleRate(t *testing.T) {
	data := testWAV(t, 44100, 960)
	fs, err := NewFileSource("f1", data, 480)
	require.NoError(t, err)
	assert.Equal(t, 44100, fs.SampleRate())
	assert.Equal(t, "f1", fs.ID())
}

func TestNewFileSourceRejectsInvalidWAV(t *testing.T) {
	_, err := NewFileSource("f1", []byte("not a wav"), 480)
	assert.Error(t, err)
}

func TestFileSourceDeliversAllSamples(t *testing.T) {
	data := testWAV(t, 48000, 1440)
	fs, err := NewFileSource("f1", data, 480)
	require.NoError(t, err)

	var mu sync.Mutex
	var total int
	err = fs.Start(context.Background(), func(samples []float32) {
		mu.Lock()
		total += len(samples)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return total == 1440
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, fs.IsActive())
}

func TestFileSourceStopCancelsEarly(t *testing.T) {
	data := testWAV(t, 48000, 48000)
	fs, err := NewFileSource("f1", data, 480)
	require.NoError(t, err)

	err = fs.Start(context.Background(), func(samples []float32) {})
	require.NoError(t, err)
	assert.True(t, fs.IsActive())

	require.NoError(t, fs.Stop())
	assert.False(t, fs.IsActive())
}

func TestFileSourceStartTwiceFails(t *testing.T) {
	data := testWAV(t, 48000, 960)
	fs, err := NewFileSource("f1", data, 480)
	require.NoError(t, err)

	require.NoError(t, fs.Start(context.Background(), func(samples []float32) {}))
	defer fs.Stop()

	err = fs.Start(context.Background(), func(samples []float32) {})
	assert.Error(t, err)
}
