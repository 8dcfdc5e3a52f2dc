package progress

import (
	"sync"
	"time"
)

// State enum for the estimator lifecycle
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Phase boundaries of the deceleration curve. The estimator is cosmetic:
// it does not measure the remote call, it only has to be non-decreasing
// while running and must never hit 100 on its own.
const (
	fastCeiling = 60
	slowCeiling = 90
	maxSynth    = 99

	fastStep  = 7
	slowStep  = 2
	crawlStep = 1
)

// Estimator emits a monotonically increasing synthetic progress value on
// a fixed tick while an analysis is in flight. The owning controller is
// the only caller of Complete/Abort; Value may be polled concurrently.
type Estimator struct {
	mu    sync.Mutex
	state State
	value int
	tick  time.Duration
	stop  chan struct{}
}

func NewEstimator(tick time.Duration) *Estimator {
	if tick <= 0 {
		tick = 200 * time.Millisecond
	}
	return &Estimator{state: StateIdle, tick: tick}
}

// Start resets the value to 0 and begins ticking. Restarting a running
// estimator aborts the previous run first, so a stale ticker can never
// outlive its run.
func (e *Estimator) Start() {
	e.mu.Lock()
	if e.stop != nil {
		close(e.stop)
	}
	stop := make(chan struct{})
	e.stop = stop
	e.state = StateRunning
	e.value = 0
	e.mu.Unlock()

	go e.run(stop)
}

func (e *Estimator) run(stop chan struct{}) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.step(stop)
		}
	}
}

func (e *Estimator) step(stop chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// Guard against a tick racing a terminal transition.
	if e.state != StateRunning || e.stop != stop {
		return
	}
	switch {
	case e.value < fastCeiling:
		e.value += fastStep
	case e.value < slowCeiling:
		e.value += slowStep
	default:
		e.value += crawlStep
	}
	if e.value > maxSynth {
		e.value = maxSynth
	}
}

// Complete forces the value to 100. Only the controller calls this, and
// only on confirmed success of the remote analysis.
func (e *Estimator) Complete() {
	e.finish(StateCompleted, 100)
}

// Abort stops the ticker and resets the value to 0. Used on failure,
// cancellation and session clear.
func (e *Estimator) Abort() {
	e.finish(StateAborted, 0)
}

func (e *Estimator) finish(state State, value int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
	e.state = state
	e.value = value
}

func (e *Estimator) Value() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

func (e *Estimator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
