// ABOUTME: Observer hooks for playback instrumentation
// ABOUTME: Lets metrics collectors follow fragments, blocks and state changes
package playback

import "time"

// Observer receives playback events. Calls are made from the goroutine
// that caused the event and must return quickly.
type Observer interface {
	FragmentReceived(bytes int)
	FragmentDecoded(latency time.Duration)
	DecodeFailed()
	FragmentDropped()
	BlockPlayed(duration time.Duration)
	DeviceFailed()
	BufferLevel(occupancy int)
	StateChanged(state State)
}

type nopObserver struct{}

func (nopObserver) FragmentReceived(int)          {}
func (nopObserver) FragmentDecoded(time.Duration) {}
func (nopObserver) DecodeFailed()                 {}
func (nopObserver) FragmentDropped()              {}
func (nopObserver) BlockPlayed(time.Duration)     {}
func (nopObserver) DeviceFailed()                 {}
func (nopObserver) BufferLevel(int)               {}
func (nopObserver) StateChanged(State)            {}
