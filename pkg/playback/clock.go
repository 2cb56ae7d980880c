// ABOUTME: Timer source for look-ahead scheduling
// ABOUTME: Wraps time.AfterFunc so tests can fire timers by hand
package playback

import "time"

// Timer is a pending callback that can be stopped
type Timer interface {
	Stop() bool
}

// Clock arms timers
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
