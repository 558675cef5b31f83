package denoiser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/voiceengine/internal/dsp"
)

type fakeState struct {
	closed bool
}

func (s *fakeState) Process(in, out *dsp.Frame) (Result, error) {
	*out = *in
	return Result{VAD: 1}, nil
}

func (s *fakeState) Close() error {
	s.closed = true
	return nil
}

func TestArenaCreateAndProcess(t *testing.T) {
	t.Parallel()
	var created []*fakeState
	arena := NewArena(func() (State, error) {
		s := &fakeState{}
		created = append(created, s)
		return s, nil
	})

	h, err := arena.CreateState()
	require.NoError(t, err)
	assert.Equal(t, 1, arena.Len())

	var in, out dsp.Frame
	in[0] = 0.5
	result, err := arena.ProcessFrame(h, &in, &out)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, float32(1), result.VAD)
}

func TestArenaDestroyStateClosesAndForgets(t *testing.T) {
	t.Parallel()
	var s *fakeState
	arena := NewArena(func() (State, error) {
		s = &fakeState{}
		return s, nil
	})

	h, err := arena.CreateState()
	require.NoError(t, err)

	require.NoError(t, arena.DestroyState(h))
	assert.True(t, s.closed)
	assert.Equal(t, 0, arena.Len())

	// Idempotent: destroying again is a no-op, not an error.
	assert.NoError(t, arena.DestroyState(h))
}

func TestArenaProcessFrameOnUnknownHandleErrors(t *testing.T) {
	t.Parallel()
	arena := NewArena(func() (State, error) { return &fakeState{}, nil })

	var in, out dsp.Frame
	_, err := arena.ProcessFrame(Handle(999), &in, &out)
	assert.Error(t, err)
}

func TestArenaWarmupOnUnknownHandleErrors(t *testing.T) {
	t.Parallel()
	arena := NewArena(func() (State, error) { return &fakeState{}, nil })
	assert.Error(t, arena.Warmup(Handle(42)))
}

func TestArenaHandlesAreUnique(t *testing.T) {
	t.Parallel()
	arena := NewArena(func() (State, error) { return &fakeState{}, nil })
	h1, err := arena.CreateState()
	require.NoError(t, err)
	h2, err := arena.CreateState()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
