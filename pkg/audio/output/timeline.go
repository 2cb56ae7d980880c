// ABOUTME: Sample-accurate device timeline shared by all output backends
// ABOUTME: Places blocks at absolute frame positions and mixes them on demand
package output

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/resample"
	"github.com/charmbracelet/log"
)

// snapTolerance is how close a requested start must be to the previous
// block's end to be joined to it exactly
const snapTolerance = 2 * time.Millisecond

type entry struct {
	seq     uint64
	start   int64   // first frame on the timeline
	samples []int32 // rendered frames at the device rate
	src     []int32 // source frames in the device layout, kept for re-timing
	srcRate int
	rate    float64
	done    func(error)
}

func (e *entry) end(channels int) int64 {
	return e.start + int64(len(e.samples)/channels)
}

// Timeline is the clock and mixer behind every backend. Its clock is the
// number of frames rendered so far, so it stops exactly when the backend
// stops pulling audio. Backends call Render from their audio callback.
type Timeline struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	cursor     int64
	lastEnd    int64
	entries    []*entry
	volume     float64
	suspended  bool
	closed     bool
	snap       int64
	dispatch   *dispatcher
}

// NewTimeline creates a timeline rendering at the given device layout
func NewTimeline(sampleRate, channels int) *Timeline {
	return &Timeline{
		sampleRate: sampleRate,
		channels:   channels,
		volume:     1.0,
		snap:       audio.DurationToFrames(snapTolerance, sampleRate),
		dispatch:   newDispatcher(),
	}
}

// SampleRate returns the device sample rate
func (t *Timeline) SampleRate() int {
	return t.sampleRate
}

// Channels returns the device channel count
func (t *Timeline) Channels() int {
	return t.channels
}

// Now returns the device clock
func (t *Timeline) Now() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return audio.FramesToDuration(int(t.cursor), t.sampleRate)
}

// Schedule converts the block to the device layout and speed and places it on the timeline
func (t *Timeline) Schedule(b audio.Block, at time.Duration, rate float64, done func(error)) (Span, error) {
	if b.Format.SampleRate <= 0 || b.Format.Channels <= 0 || len(b.Samples) == 0 {
		return Span{}, fmt.Errorf("%w: block %d has format %s and %d samples", ErrInvalidBlock, b.Seq, b.Format, len(b.Samples))
	}

	src := audio.Remix(b.Samples, b.Format.Channels, t.channels)
	samples := resample.NewWithSpeed(b.Format.SampleRate, t.sampleRate, t.channels, rate).Resample(src)
	if len(samples) < t.channels {
		return Span{}, fmt.Errorf("%w: block %d is shorter than one device frame", ErrInvalidBlock, b.Seq)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return Span{}, ErrClosed
	}

	start := audio.DurationToFrames(at, t.sampleRate)
	if start < t.cursor {
		start = t.cursor
	}
	if d := start - t.lastEnd; d >= -t.snap && d <= t.snap && t.lastEnd >= t.cursor {
		start = t.lastEnd
	}
	if start < t.lastEnd {
		log.Debug("Timeline: block overlaps previous, appending", "seq", b.Seq, "start", start, "lastEnd", t.lastEnd)
		start = t.lastEnd
	}

	e := &entry{
		seq:     b.Seq,
		start:   start,
		samples: samples,
		src:     src,
		srcRate: b.Format.SampleRate,
		rate:    rate,
		done:    done,
	}
	t.entries = append(t.entries, e)
	t.lastEnd = e.end(t.channels)
	return t.span(e), nil
}

// SetRate re-resamples everything not yet rendered at the new speed. The
// sounding block keeps its rendered prefix and continues from the matching
// source position; later blocks move so that back-to-back neighbours stay
// joined.
func (t *Timeline) SetRate(rate float64) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || len(t.entries) == 0 {
		return nil
	}

	spans := make([]Span, 0, len(t.entries))
	oldPrev, newPrev := int64(-1), t.cursor
	for _, e := range t.entries {
		oldStart, oldEnd := e.start, e.end(t.channels)
		rs := resample.NewWithSpeed(e.srcRate, t.sampleRate, t.channels, rate)

		if e.start < t.cursor {
			played := t.cursor - e.start
			oldRatio := float64(e.srcRate) * e.rate / float64(t.sampleRate)
			pos := min(int64(math.Round(float64(played)*oldRatio)), int64(len(e.src)/t.channels))
			tail := rs.Resample(e.src[pos*int64(t.channels):])

			samples := make([]int32, 0, int(played)*t.channels+len(tail))
			samples = append(samples, e.samples[:played*int64(t.channels)]...)
			e.samples = append(samples, tail...)
		} else {
			if oldStart == oldPrev {
				e.start = newPrev
			} else {
				e.start = max(e.start, newPrev)
			}
			e.samples = rs.Resample(e.src)
		}
		e.rate = rate

		oldPrev, newPrev = oldEnd, e.end(t.channels)
		spans = append(spans, t.span(e))
	}
	t.lastEnd = max(t.cursor, newPrev)
	return spans
}

func (t *Timeline) span(e *entry) Span {
	return Span{
		Seq:   e.seq,
		Start: audio.FramesToDuration(int(e.start), t.sampleRate),
		End:   audio.FramesToDuration(int(e.end(t.channels)), t.sampleRate),
	}
}

// Render fills out with the next interleaved frames and advances the clock.
// While suspended it writes silence and the clock stands still.
func (t *Timeline) Render(out []int32) {
	for i := range out {
		out[i] = 0
	}

	t.mu.Lock()
	if t.suspended || t.closed {
		t.mu.Unlock()
		return
	}

	frames := int64(len(out) / t.channels)
	from, to := t.cursor, t.cursor+frames
	volume := t.volume

	var finished []completion
	kept := t.entries[:0]
	for _, e := range t.entries {
		end := e.end(t.channels)
		if e.start < to && end > from {
			lo := max(e.start, from)
			hi := min(end, to)
			src := e.samples[(lo-e.start)*int64(t.channels) : (hi-e.start)*int64(t.channels)]
			dst := out[(lo-from)*int64(t.channels):]
			mix(dst, src, volume)
		}
		if end <= to {
			finished = append(finished, completion{done: e.done})
			continue
		}
		kept = append(kept, e)
	}
	clearTail(t.entries, len(kept))
	t.entries = kept
	t.cursor = to
	t.mu.Unlock()

	t.dispatch.post(finished)
}

// SetVolume sets the render gain; it takes effect on the next Render
func (t *Timeline) SetVolume(volume float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume = max(0, min(1, volume))
}

// Volume returns the render gain
func (t *Timeline) Volume() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}

// Suspend halts the clock
func (t *Timeline) Suspend() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = true
	return nil
}

// Resume restarts the clock
func (t *Timeline) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = false
	return nil
}

// CancelPending drops blocks that have not started; a block already
// sounding keeps playing to its end.
func (t *Timeline) CancelPending() {
	t.mu.Lock()
	var canceled []completion
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.start >= t.cursor {
			canceled = append(canceled, completion{done: e.done, err: ErrCanceled})
			continue
		}
		kept = append(kept, e)
	}
	clearTail(t.entries, len(kept))
	t.entries = kept
	t.lastEnd = t.cursor
	for _, e := range kept {
		t.lastEnd = max(t.lastEnd, e.end(t.channels))
	}
	t.mu.Unlock()

	t.dispatch.post(canceled)
}

// Clear drops every block, including one partially rendered
func (t *Timeline) Clear() {
	t.mu.Lock()
	canceled := make([]completion, 0, len(t.entries))
	for _, e := range t.entries {
		canceled = append(canceled, completion{done: e.done, err: ErrCanceled})
	}
	clearTail(t.entries, 0)
	t.entries = t.entries[:0]
	t.lastEnd = t.cursor
	t.mu.Unlock()

	t.dispatch.post(canceled)
}

// Pending returns the number of blocks on the timeline, started or not
func (t *Timeline) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Close drops everything still scheduled and stops callback delivery
func (t *Timeline) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	closed := make([]completion, 0, len(t.entries))
	for _, e := range t.entries {
		closed = append(closed, completion{done: e.done, err: ErrClosed})
	}
	t.entries = nil
	t.mu.Unlock()

	t.dispatch.post(closed)
	t.dispatch.stop()
	return nil
}

// mix adds src into dst with gain, clamping to the 24-bit range
func mix(dst, src []int32, volume float64) {
	if volume == 1.0 {
		for i, s := range src {
			dst[i] = audio.Clamp24(int64(dst[i]) + int64(s))
		}
		return
	}
	for i, s := range src {
		dst[i] = audio.Clamp24(int64(dst[i]) + int64(float64(s)*volume))
	}
}

// clearTail nils out entries past n so dropped blocks can be collected
func clearTail(entries []*entry, n int) {
	for i := n; i < len(entries); i++ {
		entries[i] = nil
	}
}
