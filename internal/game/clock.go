package game

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// turnClock keeps at most one pending turn timeout per session. Arming
// replaces the previous timer; the generation counter advances on every
// arm and cancel so a firing that lost a race is recognized as stale.
// All fields are guarded by the owning session's mutex; the fire
// callback runs outside it and must re-check the generation.
type turnClock struct {
	clock    clockwork.Clock
	duration time.Duration

	gen      uint64
	timer    clockwork.Timer
	cancelCh chan struct{}
	deadline time.Time
}

func newTurnClock(clock clockwork.Clock, duration time.Duration) *turnClock {
	return &turnClock{
		clock:    clock,
		duration: duration,
	}
}

// arm schedules a fresh timeout, replacing any pending one, and returns
// the new deadline.
func (that *turnClock) arm(fire func(gen uint64)) time.Time {
	that.cancel()

	gen := that.gen
	that.deadline = that.clock.Now().Add(that.duration)
	that.timer = that.clock.NewTimer(that.duration)
	that.cancelCh = make(chan struct{})

	go func(timer clockwork.Timer, cancelCh chan struct{}) {
		select {
		case <-timer.Chan():
			fire(gen)
		case <-cancelCh:
		}
	}(that.timer, that.cancelCh)

	return that.deadline
}

// cancel stops the pending timer, if any, and invalidates its
// generation so a firing already in flight becomes a no-op.
func (that *turnClock) cancel() {
	that.gen++

	if that.timer == nil {
		return
	}

	that.timer.Stop()
	close(that.cancelCh)

	that.timer = nil
	that.cancelCh = nil
	that.deadline = time.Time{}
}

// isCurrent reports whether a firing with the given generation is still
// the live one.
func (that *turnClock) isCurrent(gen uint64) bool {
	return that.timer != nil && that.gen == gen
}
