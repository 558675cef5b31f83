package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/voiceengine/internal/config"
	"github.com/tphakala/voiceengine/internal/denoiser"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg, err := config.New(config.EngineConfig{AllowDegraded: true})
	require.NoError(t, err)
	e, err := New(cfg, denoiser.NewNoopAdapter())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = e.Destroy(true)
	})
	return e
}

func TestInitializeTransitionsToReady(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Initialize())
	assert.Equal(t, StateReady, e.GetDiagnostics().State)
}

func TestInitializeIsIdempotentUnderConcurrency(t *testing.T) {
	e := newTestEngine(t)

	var wg sync.WaitGroup
	var errCount atomic.Int64
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.Initialize(); err != nil {
				errCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), errCount.Load())
	assert.Equal(t, StateReady, e.GetDiagnostics().State)
}

func TestProcessStreamRequiresReadyState(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ProcessStream(48000, nil)
	assert.Error(t, err)
}

func TestProcessStreamTransitionsToProcessing(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Initialize())

	sc, err := e.ProcessStream(48000, &ChunkOptions{ChunkDurationMs: 100})
	require.NoError(t, err)
	require.NotNil(t, sc)

	assert.Equal(t, StateProcessing, e.GetDiagnostics().State)
	assert.Equal(t, 1, e.GetDiagnostics().ActiveStreams)

	e.StopStream(sc.ID())
	assert.Equal(t, 0, e.GetDiagnostics().ActiveStreams)
}

func TestDestroyFailsWithActiveStreamsUnlessForced(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Initialize())

	sc, err := e.ProcessStream(48000, nil)
	require.NoError(t, err)
	defer e.StopStream(sc.ID())

	err = e.Destroy(false)
	assert.Error(t, err)
}

func TestDestroyForceStopsAllStreams(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Initialize())

	_, err := e.ProcessStream(48000, nil)
	require.NoError(t, err)

	require.NoError(t, e.Destroy(true))
	assert.Equal(t, StateDestroyed, e.GetDiagnostics().State)
}

func TestGetDiagnosticsReportsRecentErrors(t *testing.T) {
	e := newTestEngine(t)
	e.recordError("TestError", "something went wrong")

	diag := e.GetDiagnostics()
	require.Len(t, diag.RecentErrors, 1)
	assert.Equal(t, "TestError", diag.RecentErrors[0].Kind)
}

func TestErrorHistoryIsBoundedAndOrdered(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < errorHistorySize+5; i++ {
		e.recordError("Kind", fmt.Sprintf("msg-%d", i))
	}

	diag := e.GetDiagnostics()
	assert.Len(t, diag.RecentErrors, errorHistorySize)
	// Oldest surviving entry first, newest last.
	assert.Equal(t, "msg-5", diag.RecentErrors[0].Message)
	assert.Equal(t, fmt.Sprintf("msg-%d", errorHistorySize+4), diag.RecentErrors[errorHistorySize-1].Message)
}

func TestAutoCleanupDestroysAfterDelay(t *testing.T) {
	cfg, err := config.New(config.EngineConfig{
		AllowDegraded:  true,
		AutoCleanup:    true,
		CleanupDelayMs: 20,
	})
	require.NoError(t, err)
	e, err := New(cfg, denoiser.NewNoopAdapter())
	require.NoError(t, err)
	require.NoError(t, e.Initialize())

	sc, err := e.ProcessStream(48000, nil)
	require.NoError(t, err)
	e.StopStream(sc.ID())

	require.Eventually(t, func() bool {
		return e.GetDiagnostics().State == StateDestroyed
	}, time.Second, 5*time.Millisecond)
}

func TestSetInputGainClampsRange(t *testing.T) {
	e := newTestEngine(t)
	e.SetInputGain(100)
	e.mu.RLock()
	g := e.cfg.InputGain
	e.mu.RUnlock()
	assert.Equal(t, 10.0, g)

	e.SetInputGain(0.01)
	e.mu.RLock()
	g = e.cfg.InputGain
	e.mu.RUnlock()
	assert.Equal(t, 0.5, g)
}

func TestSetAgcTargetLevelClampsRange(t *testing.T) {
	e := newTestEngine(t)
	e.SetAgcTargetLevel(5)
	e.mu.RLock()
	target := e.cfg.AGCTargetLevel
	e.mu.RUnlock()
	assert.Equal(t, 1.0, target)
}

func TestProcessFileRejectsNonPCMInput(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ProcessFile([]byte("not a wav file"))
	assert.Error(t, err)
}
