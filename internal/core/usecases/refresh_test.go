package usecases_test

import (
	"testing"
	"time"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/ogcview/internal/core/usecases"
)

// fireCounter wires a scheduler the way ViewerSession does: the timer
// callback hands the generation back to Elapsed.
type fireCounter struct {
	sched *usecases.RefreshScheduler
	fires int
}

func newCountingScheduler(clk clock.Clock, delay time.Duration) *fireCounter {
	fc := &fireCounter{}
	fc.sched = usecases.NewRefreshScheduler(clk, delay, func(gen uint64) {
		if fc.sched.Elapsed(gen) {
			fc.fires++
		}
	})
	return fc
}

func TestRefreshScheduler_DebouncesBurst(t *testing.T) {
	clk := clock.NewMock()
	fc := newCountingScheduler(clk, time.Second)

	for i := 0; i < 10; i++ {
		fc.sched.ViewChanged()
		clk.Add(200 * time.Millisecond)
	}
	if fc.fires != 0 {
		t.Fatalf("expected no fire during the burst, got %d", fc.fires)
	}
	if fc.sched.State() != usecases.RefreshPending {
		t.Fatalf("expected pending, got %s", fc.sched.State())
	}

	clk.Add(time.Second)
	if fc.fires != 1 {
		t.Fatalf("expected exactly 1 fire, got %d", fc.fires)
	}
	if fc.sched.State() != usecases.RefreshInFlight {
		t.Fatalf("expected in_flight, got %s", fc.sched.State())
	}
}

func TestRefreshScheduler_FiresAfterQuietPeriod(t *testing.T) {
	clk := clock.NewMock()
	fc := newCountingScheduler(clk, time.Second)

	fc.sched.ViewChanged()
	clk.Add(999 * time.Millisecond)
	if fc.fires != 0 {
		t.Fatalf("fired before the window elapsed")
	}
	clk.Add(time.Millisecond)
	if fc.fires != 1 {
		t.Fatalf("expected 1 fire, got %d", fc.fires)
	}

	fc.sched.Resolved()
	if fc.sched.State() != usecases.RefreshIdle {
		t.Errorf("expected idle after resolve, got %s", fc.sched.State())
	}
}

func TestRefreshScheduler_ChangeDuringFlightOpensNewWindow(t *testing.T) {
	clk := clock.NewMock()
	fc := newCountingScheduler(clk, time.Second)

	fc.sched.ViewChanged()
	clk.Add(time.Second)
	if fc.fires != 1 {
		t.Fatalf("expected first fire")
	}

	fc.sched.ViewChanged()
	clk.Add(5 * time.Second)
	if fc.fires != 1 {
		t.Fatalf("a change during flight must not fire on its own, got %d fires", fc.fires)
	}

	fc.sched.Resolved()
	if fc.sched.State() != usecases.RefreshPending {
		t.Fatalf("expected pending follow-up, got %s", fc.sched.State())
	}
	clk.Add(time.Second)
	if fc.fires != 2 {
		t.Errorf("expected follow-up fire, got %d fires", fc.fires)
	}
}

func TestRefreshScheduler_ResetCancelsPending(t *testing.T) {
	clk := clock.NewMock()
	fc := newCountingScheduler(clk, time.Second)

	fc.sched.ViewChanged()
	fc.sched.Reset()
	clk.Add(2 * time.Second)
	if fc.fires != 0 {
		t.Errorf("expected no fire after reset, got %d", fc.fires)
	}
	if fc.sched.State() != usecases.RefreshIdle {
		t.Errorf("expected idle, got %s", fc.sched.State())
	}
}

func TestRefreshScheduler_BeginDropsPendingWindow(t *testing.T) {
	clk := clock.NewMock()
	fc := newCountingScheduler(clk, time.Second)

	fc.sched.ViewChanged()
	fc.sched.Begin()
	clk.Add(2 * time.Second)
	if fc.fires != 0 {
		t.Errorf("expected pending window to be dropped, got %d fires", fc.fires)
	}
	if fc.sched.State() != usecases.RefreshInFlight {
		t.Errorf("expected in_flight, got %s", fc.sched.State())
	}
}

func TestRefreshScheduler_StaleGenerationIgnored(t *testing.T) {
	sched := usecases.NewRefreshScheduler(clock.NewMock(), time.Second, func(uint64) {})
	sched.ViewChanged()
	if sched.Elapsed(0) {
		t.Error("expected stale generation to be rejected")
	}
	if sched.State() != usecases.RefreshPending {
		t.Errorf("expected pending, got %s", sched.State())
	}
}

func TestRefreshScheduler_DefaultDelay(t *testing.T) {
	sched := usecases.NewRefreshScheduler(nil, 0, func(uint64) {})
	if sched.Delay() != usecases.DefaultDebounce {
		t.Errorf("expected default delay, got %s", sched.Delay())
	}
}
