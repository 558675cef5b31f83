package denoiser

import (
	"sync"
	"sync/atomic"

	"github.com/tphakala/voiceengine/internal/dsp"
)

// State is what a real denoiser implementation stores per stream: whatever
// native handle or model context it needs, plus however it runs a frame
// through that context.
type State interface {
	// Process denoises in into out, returning the frame's VAD estimate.
	Process(in, out *dsp.Frame) (Result, error)
	// Close releases anything the state owns.
	Close() error
}

// StateFactory constructs a fresh State, e.g. opening a handle against a
// shared model/core.
type StateFactory func() (State, error)

// Arena hands out Handles backed by States, generalizing the teacher's
// generic ResourcePool[T] to this package's State interface: a single
// denoiser core's worth of states, indexed by handle so ProcessFrame can
// look one up without holding a reference the caller has to pass back in.
type Arena struct {
	factory StateFactory

	mu      sync.Mutex
	states  map[Handle]State
	nextID  atomic.Uint64
}

// NewArena builds an arena that creates new states with factory.
func NewArena(factory StateFactory) *Arena {
	return &Arena{
		factory: factory,
		states:  make(map[Handle]State),
	}
}

// CreateState allocates a new state via the factory and registers it under
// a fresh handle.
func (a *Arena) CreateState() (Handle, error) {
	state, err := a.factory()
	if err != nil {
		return 0, err
	}

	h := Handle(a.nextID.Add(1))
	a.mu.Lock()
	a.states[h] = state
	a.mu.Unlock()
	return h, nil
}

// DestroyState closes and forgets the state behind h. A second call for the
// same handle is a no-op, matching the pool idiom of tolerating idempotent
// shutdown.
func (a *Arena) DestroyState(h Handle) error {
	a.mu.Lock()
	state, ok := a.states[h]
	if ok {
		delete(a.states, h)
	}
	a.mu.Unlock()

	if !ok {
		return nil
	}
	return state.Close()
}

// Warmup is a hook point for factories whose State wants a first dry run;
// the base arena has nothing extra to do beyond creation.
func (a *Arena) Warmup(h Handle) error {
	a.mu.Lock()
	_, ok := a.states[h]
	a.mu.Unlock()
	if !ok {
		return newStateNotFoundError(h)
	}
	return nil
}

// ProcessFrame looks up the state behind h and runs a frame through it.
func (a *Arena) ProcessFrame(h Handle, in, out *dsp.Frame) (Result, error) {
	a.mu.Lock()
	state, ok := a.states[h]
	a.mu.Unlock()
	if !ok {
		return Result{}, newStateNotFoundError(h)
	}
	return state.Process(in, out)
}

// Len reports the number of live states, for diagnostics and tests.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.states)
}
