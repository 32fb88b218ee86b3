package instance

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a running process instance.
type State string

const (
	StateStarting   State = "starting"
	StateReady      State = "ready"
	StateTerminated State = "terminated"
)

// ErrInvalidTransition is returned when a state change is not allowed from the current state.
var ErrInvalidTransition = errors.New("invalid instance state transition")

// Instance is one execution of the service, bounded by its spawn and termination.
// ID is generated per process so clients can tell a restarted instance from the
// previous one. Restart counting is left to whoever supervises the process.
type Instance struct {
	ID        string
	PID       int
	StartedAt time.Time

	state   atomic.Value // State
	mu      sync.Mutex
	readyAt time.Time
}

// New returns an Instance in StateStarting for the current process.
func New() *Instance {
	inst := &Instance{
		ID:        uuid.NewString(),
		PID:       os.Getpid(),
		StartedAt: time.Now(),
	}
	inst.state.Store(StateStarting)
	return inst
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	return i.state.Load().(State)
}

// Ready reports whether the instance is serving.
func (i *Instance) Ready() bool { return i.State() == StateReady }

// MarkReady moves the instance from starting to ready.
func (i *Instance) MarkReady() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.state.CompareAndSwap(StateStarting, StateReady) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.State(), StateReady)
	}
	i.readyAt = time.Now()
	return nil
}

// MarkTerminated moves the instance to terminated from any state. It never fails
// and there is no way back.
func (i *Instance) MarkTerminated() {
	i.state.Store(StateTerminated)
}

// StartupDuration is the time from construction to ready, or zero if the
// instance never became ready.
func (i *Instance) StartupDuration() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.readyAt.IsZero() {
		return 0
	}
	return i.readyAt.Sub(i.StartedAt)
}

func (i *Instance) Snapshot() Status {
	i.mu.Lock()
	readyAt := i.readyAt
	i.mu.Unlock()
	st := Status{
		ID:        i.ID,
		PID:       i.PID,
		State:     i.State(),
		StartedAt: i.StartedAt,
	}
	if !readyAt.IsZero() {
		st.ReadyAt = &readyAt
	}
	return st
}
