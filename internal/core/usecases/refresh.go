package usecases

import (
	"time"

	"github.com/facebookgo/clock"
)

// RefreshState is the state of a RefreshScheduler.
type RefreshState int

const (
	RefreshIdle RefreshState = iota
	RefreshPending
	RefreshInFlight
)

func (s RefreshState) String() string {
	switch s {
	case RefreshPending:
		return "pending"
	case RefreshInFlight:
		return "in_flight"
	default:
		return "idle"
	}
}

// DefaultDebounce is the quiet period after the last view change.
const DefaultDebounce = time.Second

// RefreshScheduler debounces view changes into refresh requests.
//
// Idle -> Pending on a view change, Pending restarts its window on every
// further change, and when the window elapses the scheduler moves to
// InFlight and the owner starts a load. A view change during InFlight is
// remembered and opens a fresh window once the load resolves.
//
// The scheduler is not safe for concurrent use; its owner serializes calls.
// onElapsed runs on the clock's timer goroutine and must hand the generation
// back to Elapsed under the owner's lock.
type RefreshScheduler struct {
	clk       clock.Clock
	delay     time.Duration
	onElapsed func(gen uint64)

	state    RefreshState
	timer    *clock.Timer
	gen      uint64
	followUp bool
}

// NewRefreshScheduler returns an idle scheduler. A non-positive delay
// selects DefaultDebounce.
func NewRefreshScheduler(clk clock.Clock, delay time.Duration, onElapsed func(gen uint64)) *RefreshScheduler {
	if clk == nil {
		clk = clock.New()
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &RefreshScheduler{clk: clk, delay: delay, onElapsed: onElapsed}
}

// State returns the current state.
func (s *RefreshScheduler) State() RefreshState { return s.state }

// Delay returns the debounce window.
func (s *RefreshScheduler) Delay() time.Duration { return s.delay }

// ViewChanged records a view change.
func (s *RefreshScheduler) ViewChanged() {
	switch s.state {
	case RefreshIdle, RefreshPending:
		s.arm()
	case RefreshInFlight:
		s.followUp = true
	}
}

// Elapsed reports whether the window identified by gen is still the live
// one. When it is, the scheduler enters InFlight and the caller must start
// a load and later call Resolved.
func (s *RefreshScheduler) Elapsed(gen uint64) bool {
	if s.state != RefreshPending || gen != s.gen {
		return false
	}
	s.timer = nil
	s.state = RefreshInFlight
	s.followUp = false
	return true
}

// Begin marks a load started outside the debounce window, such as a
// manual load. Any pending window is dropped.
func (s *RefreshScheduler) Begin() {
	s.stop()
	s.state = RefreshInFlight
	s.followUp = false
}

// Resolved ends the in-flight load. A view change seen meanwhile opens a
// new window, otherwise the scheduler goes idle.
func (s *RefreshScheduler) Resolved() {
	if s.state != RefreshInFlight {
		return
	}
	if s.followUp {
		s.followUp = false
		s.arm()
		return
	}
	s.state = RefreshIdle
}

// Reset drops any pending window and returns to Idle.
func (s *RefreshScheduler) Reset() {
	s.stop()
	s.state = RefreshIdle
	s.followUp = false
}

func (s *RefreshScheduler) arm() {
	s.stop()
	s.gen++
	gen := s.gen
	s.state = RefreshPending
	s.timer = s.clk.AfterFunc(s.delay, func() { s.onElapsed(gen) })
}

func (s *RefreshScheduler) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	// Invalidates callbacks of timers that already fired.
	s.gen++
}
