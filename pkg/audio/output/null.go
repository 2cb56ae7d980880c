// ABOUTME: Silent output backend paced by the wall clock
// ABOUTME: Renders and discards audio so playback runs without a sound card
package output

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
)

const nullTick = 10 * time.Millisecond

// Null is a device that consumes audio in real time and throws it away.
// It is used headless and in CI where no sound card exists.
type Null struct {
	*Timeline

	mu        sync.Mutex
	suspended bool
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewNull creates a silent device and starts its clock
func NewNull(sampleRate, channels int) *Null {
	n := &Null{
		Timeline: NewTimeline(sampleRate, channels),
		quit:     make(chan struct{}),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

func (n *Null) run() {
	defer n.wg.Done()

	ticker := time.NewTicker(nullTick)
	defer ticker.Stop()

	last := time.Now()
	var buf []int32
	for {
		select {
		case <-n.quit:
			return
		case now := <-ticker.C:
			n.mu.Lock()
			suspended := n.suspended
			n.mu.Unlock()
			if suspended {
				last = now
				continue
			}

			frames := audio.DurationToFrames(now.Sub(last), n.SampleRate())
			if frames <= 0 {
				continue
			}
			last = last.Add(audio.FramesToDuration(int(frames), n.SampleRate()))

			size := int(frames) * n.Channels()
			if cap(buf) < size {
				buf = make([]int32, size)
			}
			n.Render(buf[:size])
		}
	}
}

// Suspend halts the clock
func (n *Null) Suspend() error {
	n.mu.Lock()
	n.suspended = true
	n.mu.Unlock()
	return n.Timeline.Suspend()
}

// Resume restarts the clock
func (n *Null) Resume() error {
	n.mu.Lock()
	n.suspended = false
	n.mu.Unlock()
	return n.Timeline.Resume()
}

// Close stops the clock and releases the timeline
func (n *Null) Close() error {
	n.closeOnce.Do(func() {
		close(n.quit)
		n.wg.Wait()
	})
	return n.Timeline.Close()
}
