// ABOUTME: Simulated output device and timer source for deterministic tests
// ABOUTME: Advances device time event by event, firing timers and completions in order
package playback

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/output"
)

var testFormat = audio.Format{Codec: "pcm", SampleRate: 1000, Channels: 1, BitDepth: 16}

// block builds a block of the given length; 1 frame per millisecond
func block(seq uint64, d time.Duration) audio.Block {
	return audio.NewBlock(seq, make([]int32, int(d/time.Millisecond)), testFormat)
}

// call records one Schedule call on the simulated device
type call struct {
	block    audio.Block
	at       time.Duration
	until    time.Duration
	rate     float64
	done     func(error)
	finished bool
	canceled bool
}

func (c *call) end() time.Duration {
	return c.until
}

func (c *call) span() output.Span {
	return output.Span{Seq: c.block.Seq, Start: c.at, End: c.until}
}

type fakeTimer struct {
	sim      *sim
	deadline time.Duration
	f        func()
	fired    bool
	stopped  bool
}

func (t *fakeTimer) Stop() bool {
	t.sim.mu.Lock()
	defer t.sim.mu.Unlock()
	active := !t.fired && !t.stopped
	t.stopped = true
	return active
}

// sim is an output.Device and a Clock sharing one simulated timeline.
// Canceled blocks never get a completion; the scheduler has moved to a new
// epoch by then and would ignore it.
type sim struct {
	mu        sync.Mutex
	now       time.Duration
	suspended bool
	volume    float64
	calls     []*call
	timers    []*fakeTimer
	cancels   int
	clears    int

	// scheduleErr, when set, decides whether Schedule refuses a block
	scheduleErr func(b audio.Block) error
}

func newSim() *sim {
	return &sim{volume: 1.0}
}

func (s *sim) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *sim) Schedule(b audio.Block, at time.Duration, rate float64, done func(error)) (output.Span, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduleErr != nil {
		if err := s.scheduleErr(b); err != nil {
			return output.Span{}, err
		}
	}
	c := &call{block: b, at: at, until: at + stretch(b.Duration, rate), rate: rate, done: done}
	s.calls = append(s.calls, c)
	return c.span(), nil
}

// SetRate re-times live calls the way Timeline does: the sounding call keeps
// its played part, later calls follow back to back when they were joined.
func (s *sim) SetRate(rate float64) []output.Span {
	s.mu.Lock()
	defer s.mu.Unlock()

	var spans []output.Span
	oldPrev, newPrev := time.Duration(-1), s.now
	for _, c := range s.calls {
		if c.finished || c.canceled {
			continue
		}
		oldAt, oldUntil := c.at, c.until
		if c.at < s.now {
			played := time.Duration(float64(s.now-c.at) * c.rate)
			c.until = s.now + stretch(c.block.Duration-played, rate)
		} else {
			if oldAt == oldPrev {
				c.at = newPrev
			} else {
				c.at = max(c.at, newPrev)
			}
			c.until = c.at + stretch(c.block.Duration, rate)
		}
		c.rate = rate
		oldPrev, newPrev = oldUntil, c.until
		spans = append(spans, c.span())
	}
	return spans
}

func stretch(d time.Duration, rate float64) time.Duration {
	return time.Duration(float64(d) / rate)
}

func (s *sim) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *sim) Suspend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = true
	return nil
}

func (s *sim) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = false
	return nil
}

func (s *sim) CancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	for _, c := range s.calls {
		if !c.finished && c.at > s.now {
			c.canceled = true
		}
	}
}

func (s *sim) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	for _, c := range s.calls {
		if !c.finished {
			c.canceled = true
		}
	}
}

func (s *sim) Close() error {
	return nil
}

func (s *sim) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{sim: s, deadline: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// advance moves device time forward by d, firing timers and block
// completions in time order. Nothing moves while suspended.
func (s *sim) advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if s.suspended {
			s.mu.Unlock()
			return
		}

		var (
			next  time.Duration = -1
			timer *fakeTimer
			done  *call
		)
		for _, t := range s.timers {
			if !t.fired && !t.stopped && t.deadline <= target && (next < 0 || t.deadline < next) {
				next, timer, done = t.deadline, t, nil
			}
		}
		for _, c := range s.calls {
			if !c.finished && !c.canceled && c.end() <= target && (next < 0 || c.end() < next) {
				next, timer, done = c.end(), nil, c
			}
		}

		if next < 0 {
			s.now = target
			s.mu.Unlock()
			return
		}
		if next > s.now {
			s.now = next
		}

		if timer != nil {
			timer.fired = true
			s.mu.Unlock()
			timer.f()
			continue
		}
		done.finished = true
		s.mu.Unlock()
		done.done(nil)
	}
}

// finishInFlight completes every started, unfinished block immediately
func (s *sim) finishInFlight(err error) {
	s.mu.Lock()
	var pending []*call
	for _, c := range s.calls {
		if !c.finished && !c.canceled {
			c.finished = true
			pending = append(pending, c)
		}
	}
	s.mu.Unlock()

	for _, c := range pending {
		c.done(err)
	}
}

func (s *sim) scheduled() []*call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*call(nil), s.calls...)
}

func (s *sim) seqs() []uint64 {
	var out []uint64
	for _, c := range s.scheduled() {
		out = append(out, c.block.Seq)
	}
	return out
}

// requireContiguous checks each scheduled block starts where the previous ends
func requireContiguous(t *testing.T, calls []*call) {
	t.Helper()
	for i := 1; i < len(calls); i++ {
		if calls[i].at != calls[i-1].end() {
			t.Fatalf("block %d starts at %v, previous ends at %v", calls[i].block.Seq, calls[i].at, calls[i-1].end())
		}
	}
}

var _ output.Device = (*sim)(nil)
var _ Clock = (*sim)(nil)

// manualClock arms timers against an external device clock. Tests call fire
// between renders to run whatever is due.
type manualClock struct {
	mu     sync.Mutex
	now    func() time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock    *manualClock
	deadline time.Duration
	f        func()
	done     bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.done
	t.done = true
	return active
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	deadline := c.now() + d
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, deadline: deadline, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) fire() {
	now := c.now()
	c.mu.Lock()
	var due []*manualTimer
	kept := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.done:
		case t.deadline <= now:
			t.done = true
			due = append(due, t)
		default:
			kept = append(kept, t)
		}
	}
	c.timers = kept
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// settle waits for the scheduler to take in every completion the timeline
// has posted, so each block it tracks is still on the timeline
func settle(t *testing.T, s *Scheduler, tl *output.Timeline) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Snapshot().InFlight != tl.Pending() {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler tracks %d blocks, timeline holds %d", s.Snapshot().InFlight, tl.Pending())
		}
		runtime.Gosched()
	}
}
