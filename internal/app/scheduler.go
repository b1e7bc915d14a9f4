package app

import "time"

// Timer is a cancellable handle for a scheduled callback. Stop reports
// whether the callback was prevented from running; a timer that already
// fired is a no-op to stop.
type Timer interface {
	Stop() bool
}

// Scheduler schedules delayed callbacks. The engine treats it as a
// primitive so tests can drive time by hand.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Timer
}

// WallScheduler runs callbacks on real wall-clock timers.
type WallScheduler struct{}

func (WallScheduler) Schedule(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
