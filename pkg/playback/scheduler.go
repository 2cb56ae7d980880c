// ABOUTME: Gapless playback scheduler driving the output device timeline
// ABOUTME: Owns the buffer, the state machine, look-ahead timing and device failure handling
package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/output"
	"github.com/charmbracelet/log"
)

// flight is a block handed to the device that has not reported completion
type flight struct {
	seq   uint64
	start time.Duration
	end   time.Duration
}

// Stats counts what happened to blocks during the current session
type Stats struct {
	Enqueued       uint64        `json:"enqueued"`
	Dropped        uint64        `json:"dropped"`
	Played         uint64        `json:"played"`
	PlayedDuration time.Duration `json:"played_duration"`
	DeviceErrors   uint64        `json:"device_errors"`
}

// SchedulerSnapshot is a consistent view of buffer and scheduler state
type SchedulerSnapshot struct {
	State     State
	Occupancy int
	Capacity  int
	Buffered  time.Duration
	InFlight  int
	NextFree  time.Duration
	Rate      float64
	Stats     Stats
	Fault     error
}

// Scheduler places buffered blocks back to back on the device timeline.
//
// One mutex guards the buffer and all scheduling state. Block arrivals,
// device completions and look-ahead timers each run their whole transition
// under it. Host callbacks are queued while locked and run after unlock.
type Scheduler struct {
	mu sync.Mutex

	device   output.Device
	clock    Clock
	observer Observer
	buffer   *Buffer

	threshold   int
	lookAhead   float64
	maxFailures int
	rate        float64

	state    State
	nextFree time.Duration
	inFlight []flight
	timer    Timer
	timerGen uint64
	epoch    uint64
	warm     bool
	draining bool
	failures int
	fault    error
	stats    Stats

	onState func(StateChange)
	onError func(error)
	notes   []func()
}

// NewScheduler creates a scheduler for one device. A nil clock uses real
// timers and a nil observer discards events.
func NewScheduler(device output.Device, config Config, clock Clock, observer Observer) *Scheduler {
	config = config.withDefaults()
	if clock == nil {
		clock = realClock{}
	}
	if observer == nil {
		observer = nopObserver{}
	}

	return &Scheduler{
		device:      device,
		clock:       clock,
		observer:    observer,
		buffer:      NewBuffer(config.Capacity),
		threshold:   config.StartThreshold,
		lookAhead:   config.LookAhead,
		maxFailures: config.MaxDeviceFailures,
		rate:        config.PlaybackRate,
		state:       Idle,
		onState:     config.OnStateChange,
		onError:     config.OnError,
	}
}

// unlock releases the mutex and then runs queued host callbacks
func (s *Scheduler) unlock() {
	notes := s.notes
	s.notes = nil
	s.mu.Unlock()

	for _, fn := range notes {
		fn()
	}
}

// Enqueue buffers a decoded block and starts playback once enough is buffered
func (s *Scheduler) Enqueue(b audio.Block) error {
	s.mu.Lock()
	defer s.unlock()

	if s.fault != nil {
		return fmt.Errorf("%w: %w", ErrDeviceFault, s.fault)
	}

	if err := s.buffer.Enqueue(b); err != nil {
		s.stats.Dropped++
		return err
	}
	s.stats.Enqueued++
	s.observer.BufferLevel(s.buffer.Len())

	s.evaluateLocked()
	return nil
}

// evaluateLocked decides whether buffered audio should start playing now
func (s *Scheduler) evaluateLocked() {
	if s.fault != nil {
		return
	}

	switch s.state {
	case Idle, Buffering:
		threshold := s.threshold
		if s.warm || s.draining {
			threshold = 1
		}
		if s.buffer.Len() >= threshold && s.startNextLocked() {
			s.warm = false
			s.setStateLocked(Playing)
			return
		}
		if s.state == Idle && s.buffer.Len() > 0 {
			s.setStateLocked(Buffering)
		}

	case Playing:
		// The look-ahead point already passed with nothing buffered
		if len(s.inFlight) == 1 && s.timer == nil {
			s.startNextLocked()
		}
	}
}

// startNextLocked hands the oldest playable block to the device. Blocks the
// device refuses are skipped. Reports whether a block was scheduled.
func (s *Scheduler) startNextLocked() bool {
	for {
		b, err := s.buffer.Dequeue()
		if err != nil {
			return false
		}

		start := max(s.device.Now(), s.nextFree)
		epoch, rate := s.epoch, s.rate
		span, err := s.device.Schedule(b, start, rate, func(err error) {
			s.blockFinished(epoch, b, err)
		})
		if err != nil {
			if s.deviceFailedLocked(b.Seq, err) {
				return false
			}
			continue
		}

		// The device rounds to whole frames; its span is the truth
		s.nextFree = span.End
		s.inFlight = append(s.inFlight, flight{seq: b.Seq, start: span.Start, end: span.End})
		s.observer.BufferLevel(s.buffer.Len())
		log.Debug("Scheduler: block scheduled", "seq", b.Seq, "start", span.Start, "length", span.End-span.Start, "buffered", s.buffer.Len())

		s.armLookAheadLocked()
		return true
	}
}

// armLookAheadLocked sets the timer that queues the next block while the
// only block in flight still has LookAhead of its length left to play
func (s *Scheduler) armLookAheadLocked() {
	s.stopTimerLocked()
	if len(s.inFlight) != 1 {
		return
	}

	cur := s.inFlight[0]
	fireAt := cur.end - time.Duration(float64(cur.end-cur.start)*s.lookAhead)
	delay := max(fireAt-s.device.Now(), 0)

	s.timerGen++
	epoch, gen := s.epoch, s.timerGen
	s.timer = s.clock.AfterFunc(delay, func() {
		s.lookAheadFired(epoch, gen)
	})
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) lookAheadFired(epoch, gen uint64) {
	s.mu.Lock()
	defer s.unlock()

	if epoch != s.epoch || gen != s.timerGen || s.timer == nil {
		return
	}
	s.timer = nil

	if s.state != Playing || len(s.inFlight) != 1 {
		return
	}
	// An empty buffer is picked up by the next Enqueue or by block completion
	s.startNextLocked()
}

// blockFinished handles the device completion callback for one block
func (s *Scheduler) blockFinished(epoch uint64, b audio.Block, err error) {
	s.mu.Lock()
	defer s.unlock()

	if epoch != s.epoch {
		return
	}
	s.removeFlightLocked(b.Seq)

	switch {
	case err == nil:
		s.failures = 0
		s.stats.Played++
		s.stats.PlayedDuration += b.Duration
		s.observer.BlockPlayed(b.Duration)
	case errors.Is(err, output.ErrCanceled):
	default:
		if s.deviceFailedLocked(b.Seq, err) {
			return
		}
	}

	if s.state != Playing {
		return
	}
	if len(s.inFlight) > 0 {
		s.armLookAheadLocked()
		return
	}
	if s.startNextLocked() {
		return
	}
	if s.fault != nil {
		return
	}

	if s.draining {
		s.finishDrainLocked()
		return
	}
	log.Debug("Scheduler: buffer underrun", "seq", b.Seq)
	s.setStateLocked(Buffering)
}

func (s *Scheduler) removeFlightLocked(seq uint64) {
	for i, f := range s.inFlight {
		if f.seq == seq {
			s.inFlight = append(s.inFlight[:i], s.inFlight[i+1:]...)
			return
		}
	}
}

// deviceFailedLocked records a device error for one block. It reports true
// when the failure is terminal and playback has been shut down. A block the
// device cannot represent says nothing about the device, so it is skipped
// without counting toward the consecutive failure limit.
func (s *Scheduler) deviceFailedLocked(seq uint64, err error) bool {
	s.stats.DeviceErrors++
	s.observer.DeviceFailed()

	if errors.Is(err, output.ErrInvalidBlock) {
		log.Warn("Scheduler: block unplayable, skipping", "seq", seq, "err", err)
		return false
	}
	derr := &DeviceError{Seq: seq, Err: err}

	s.failures++
	if !errors.Is(err, output.ErrUnavailable) && !errors.Is(err, output.ErrClosed) && s.failures < s.maxFailures {
		log.Warn("Scheduler: device rejected block, skipping", "seq", seq, "err", err, "consecutive", s.failures)
		return false
	}

	log.Error("Scheduler: output device failed", "seq", seq, "err", err, "consecutive", s.failures)
	s.fault = derr
	s.epoch++
	s.stopTimerLocked()
	s.device.CancelPending()
	s.inFlight = nil
	s.buffer.Clear()
	s.warm, s.draining = false, false
	s.setStateLocked(Idle)

	if onError := s.onError; onError != nil {
		s.notes = append(s.notes, func() { onError(derr) })
	}
	return true
}

// Pause suspends the device clock. Only meaningful while Playing.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.unlock()

	if s.state != Playing {
		return
	}
	if err := s.device.Suspend(); err != nil {
		log.Warn("Scheduler: device suspend failed", "err", err)
	}
	s.stopTimerLocked()
	s.setStateLocked(Paused)
}

// Resume restarts playback after Pause without waiting for the start threshold
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.unlock()

	if s.state != Paused {
		return
	}
	if err := s.device.Resume(); err != nil {
		log.Warn("Scheduler: device resume failed", "err", err)
	}
	s.setStateLocked(Buffering)

	if len(s.inFlight) > 0 {
		s.setStateLocked(Playing)
		s.armLookAheadLocked()
		return
	}
	s.warm = true
	s.evaluateLocked()
}

// SetRate changes the playback speed. Blocks already on the device, the
// sounding one included, are re-timed so the change is heard at once.
func (s *Scheduler) SetRate(rate float64) {
	s.mu.Lock()
	defer s.unlock()

	rate = ClampRate(rate)
	if rate == s.rate {
		return
	}
	s.rate = rate
	if len(s.inFlight) == 0 {
		return
	}

	for _, span := range s.device.SetRate(rate) {
		for i := range s.inFlight {
			if s.inFlight[i].seq == span.Seq {
				s.inFlight[i].start, s.inFlight[i].end = span.Start, span.End
			}
		}
	}
	// A faster rate pulls the end of the queued audio earlier; following it
	// keeps the next block joined instead of leaving a gap
	s.nextFree = s.inFlight[len(s.inFlight)-1].end
	log.Debug("Scheduler: rate changed", "rate", rate, "nextFree", s.nextFree)

	if s.state == Playing {
		s.armLookAheadLocked()
	}
}

// Drain plays out whatever is buffered, ignoring the start threshold, and
// returns to Idle when the last block finishes.
func (s *Scheduler) Drain() {
	s.mu.Lock()
	defer s.unlock()

	if s.fault != nil {
		return
	}
	s.draining = true
	s.evaluateLocked()

	if s.state != Playing && s.state != Paused && len(s.inFlight) == 0 {
		s.finishDrainLocked()
	}
}

func (s *Scheduler) finishDrainLocked() {
	s.draining = false
	s.warm = false
	s.setStateLocked(Idle)
}

// Reset cancels blocks that have not started, discards the buffer and
// returns to Idle. A block already sounding plays to its end. When paused,
// the suspended block is dropped since the device is already silent. nextFree
// falls back to the end of whatever audio is still on the device.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.unlock()

	s.epoch++
	s.stopTimerLocked()

	if s.state == Paused {
		s.device.Clear()
		if err := s.device.Resume(); err != nil {
			log.Warn("Scheduler: device resume failed", "err", err)
		}
		s.nextFree = s.device.Now()
	} else if len(s.inFlight) > 0 {
		s.device.CancelPending()
		now := s.device.Now()
		next := now
		for _, f := range s.inFlight {
			if f.start <= now {
				next = max(next, f.end)
			}
		}
		s.nextFree = next
	}

	s.inFlight = nil
	s.buffer.Clear()
	s.warm, s.draining = false, false
	s.failures = 0
	s.fault = nil
	s.stats = Stats{}
	s.observer.BufferLevel(0)
	s.setStateLocked(Idle)
}

// State returns the current state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns buffer and scheduler state read under one lock
func (s *Scheduler) Snapshot() SchedulerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SchedulerSnapshot{
		State:     s.state,
		Occupancy: s.buffer.Len(),
		Capacity:  s.buffer.Cap(),
		Buffered:  s.buffer.Duration(),
		InFlight:  len(s.inFlight),
		NextFree:  s.nextFree,
		Rate:      s.rate,
		Stats:     s.stats,
		Fault:     s.fault,
	}
}

func (s *Scheduler) setStateLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.observer.StateChanged(to)
	log.Debug("Scheduler: state change", "from", from, "to", to)

	if onState := s.onState; onState != nil {
		change := StateChange{From: from, To: to}
		s.notes = append(s.notes, func() { onState(change) })
	}
}
