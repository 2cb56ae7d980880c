// ABOUTME: Beep speaker output implementation
// ABOUTME: Feeds the device timeline to the beep speaker as a streamer
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/charmbracelet/log"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Beep output implementation using the beep speaker. The speaker mixes in
// stereo float, so the timeline always runs with two channels.
type Beep struct {
	*Timeline

	ctrl      *beep.Ctrl
	buf       []int32
	closeOnce sync.Once
}

// NewBeep initializes the beep speaker
func NewBeep(sampleRate int) (*Beep, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/20)); err != nil {
		return nil, fmt.Errorf("%w: speaker init: %v", ErrUnavailable, err)
	}

	b := &Beep{Timeline: NewTimeline(sampleRate, 2)}
	b.ctrl = &beep.Ctrl{Streamer: beep.StreamerFunc(b.stream), Paused: false}
	speaker.Play(b.ctrl)

	log.Info("Audio output initialized", "backend", "beep", "rate", sampleRate, "channels", 2)
	return b, nil
}

// stream runs on the speaker goroutine with the speaker lock held
func (b *Beep) stream(samples [][2]float64) (int, bool) {
	size := len(samples) * 2
	if cap(b.buf) < size {
		b.buf = make([]int32, size)
	}
	buf := b.buf[:size]
	b.Render(buf)

	for i := range samples {
		samples[i][0] = audio.SampleToFloat(buf[i*2])
		samples[i][1] = audio.SampleToFloat(buf[i*2+1])
	}
	return len(samples), true
}

// Suspend pauses the speaker stream and the timeline clock
func (b *Beep) Suspend() error {
	speaker.Lock()
	b.ctrl.Paused = true
	speaker.Unlock()
	return b.Timeline.Suspend()
}

// Resume unpauses the speaker stream and the timeline clock
func (b *Beep) Resume() error {
	if err := b.Timeline.Resume(); err != nil {
		return err
	}
	speaker.Lock()
	b.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

// Close stops the speaker and releases the timeline
func (b *Beep) Close() error {
	b.closeOnce.Do(func() {
		speaker.Clear()
		speaker.Close()
	})
	return b.Timeline.Close()
}
