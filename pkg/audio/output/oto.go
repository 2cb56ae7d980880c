// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams the device timeline to the sound card as 16-bit PCM
package output

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// otoBuffer is the amount of audio oto keeps queued ahead of the speaker
const otoBuffer = 40 * time.Millisecond

// Oto output implementation using oto library. The oto player pulls PCM from
// the timeline, so the timeline clock runs as fast as the sound card drains.
type Oto struct {
	*Timeline

	otoCtx    *oto.Context
	player    *oto.Player
	closeOnce sync.Once
}

// NewOto opens the sound card through oto
func NewOto(sampleRate, channels int) (*Oto, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   otoBuffer,
	}

	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create oto context: %v", ErrUnavailable, err)
	}
	<-readyChan

	o := &Oto{
		Timeline: NewTimeline(sampleRate, channels),
		otoCtx:   otoCtx,
	}
	o.player = otoCtx.NewPlayer(&timelineReader{timeline: o.Timeline})
	o.player.Play()

	log.Info("Audio output initialized", "backend", "oto", "rate", sampleRate, "channels", channels)
	return o, nil
}

// Suspend halts the sound card and the timeline clock
func (o *Oto) Suspend() error {
	if err := o.Timeline.Suspend(); err != nil {
		return err
	}
	if err := o.otoCtx.Suspend(); err != nil {
		return fmt.Errorf("oto suspend: %w", err)
	}
	return nil
}

// Resume restarts the sound card and the timeline clock
func (o *Oto) Resume() error {
	if err := o.otoCtx.Resume(); err != nil {
		return fmt.Errorf("oto resume: %w", err)
	}
	return o.Timeline.Resume()
}

// Close releases output resources
func (o *Oto) Close() error {
	o.closeOnce.Do(func() {
		if o.player != nil {
			o.player.Close()
		}
		// oto allows one context per process, so it is only suspended
		o.otoCtx.Suspend()
	})
	return o.Timeline.Close()
}

// timelineReader adapts the timeline to the io.Reader oto pulls from
type timelineReader struct {
	timeline *Timeline
	buf      []int32
}

func (r *timelineReader) Read(p []byte) (int, error) {
	channels := r.timeline.Channels()
	frames := len(p) / (2 * channels)
	if frames == 0 {
		return 0, nil
	}

	size := frames * channels
	if cap(r.buf) < size {
		r.buf = make([]int32, size)
	}
	samples := r.buf[:size]
	r.timeline.Render(samples)

	for i, s := range samples {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(audio.SampleToInt16(s)))
	}
	return size * 2, nil
}
