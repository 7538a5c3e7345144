package room

import (
	"sync"
	"time"
)

// scheduler owns every pending timer of one room. Disposal tears all of them
// down in one place, so a closed room can never fire stray callbacks.
type scheduler struct {
	mu     sync.Mutex
	ticker *time.Ticker
	timers []*time.Timer
	closed bool
}

func newScheduler(tickEvery time.Duration) *scheduler {
	return &scheduler{ticker: time.NewTicker(tickEvery)}
}

func (sc *scheduler) ticks() <-chan time.Time {
	return sc.ticker.C
}

func (sc *scheduler) after(d time.Duration, fn func()) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return
	}
	sc.timers = append(sc.timers, time.AfterFunc(d, fn))
}

func (sc *scheduler) stopAll() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return
	}
	sc.closed = true
	sc.ticker.Stop()
	for _, t := range sc.timers {
		t.Stop()
	}
	sc.timers = nil
}
