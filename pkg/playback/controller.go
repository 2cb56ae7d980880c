// ABOUTME: Playback session controller wiring fragments to the scheduler
// ABOUTME: Exposes the host control surface and the status snapshot
package playback

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/output"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// FragmentDecoder turns one encoded fragment into a block
type FragmentDecoder interface {
	Decode(seq uint64, data []byte) (audio.Block, error)
}

// Snapshot is the queryable status of a playback session
type Snapshot struct {
	SessionID       string  `json:"session_id"`
	State           State   `json:"state"`
	Occupancy       int     `json:"occupancy"`
	Capacity        int     `json:"capacity"`
	BufferedSeconds float64 `json:"buffered_seconds"`
	DropCount       uint64  `json:"drop_count"`
	DecodeErrors    uint64  `json:"decode_errors"`
	DeviceErrors    uint64  `json:"device_errors"`
	Received        uint64  `json:"received"`
	ReceivedBytes   uint64  `json:"received_bytes"`
	Played          uint64  `json:"played"`
	PlayedSeconds   float64 `json:"played_seconds"`
	PlaybackRate    float64 `json:"playback_rate"`
	Volume          float64 `json:"volume"`
	Fault           string  `json:"fault,omitempty"`
	Status          Status  `json:"status"`
}

// Option customizes a Controller
type Option func(*Controller)

// WithDecoder replaces the fragment decoder
func WithDecoder(d FragmentDecoder) Option {
	return func(c *Controller) { c.decoder = d }
}

// WithClock replaces the timer source used for look-ahead scheduling
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithObserver attaches an instrumentation observer
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// Controller is one playback session: fragments in, audio out, status on demand.
// All methods are safe for concurrent use.
type Controller struct {
	id        string
	config    Config
	device    output.Device
	decoder   FragmentDecoder
	clock     Clock
	observer  Observer
	scheduler *Scheduler

	seq           atomic.Uint64
	received      atomic.Uint64
	receivedBytes atomic.Uint64
	decodeErrors  atomic.Uint64

	mu     sync.Mutex
	rate   float64
	volume float64
}

// NewController creates a session playing through device
func NewController(device output.Device, config Config, opts ...Option) *Controller {
	config = config.withDefaults()

	c := &Controller{
		id:     uuid.New().String(),
		config: config,
		device: device,
		rate:   config.PlaybackRate,
		volume: config.Volume,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.decoder == nil {
		c.decoder = decode.NewFragmentDecoder(config.Format)
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}

	c.scheduler = NewScheduler(device, config, c.clock, c.observer)
	device.SetVolume(c.volume)

	log.Debug("Controller: session created", "session", c.id, "threshold", config.StartThreshold, "capacity", config.Capacity)
	return c
}

// ID returns the session id
func (c *Controller) ID() string {
	return c.id
}

// OnFragmentReceived decodes one fragment and queues it for playback.
// The returned error says what happened to the fragment; none is fatal.
func (c *Controller) OnFragmentReceived(data []byte) error {
	seq := c.seq.Add(1)
	c.received.Add(1)
	c.receivedBytes.Add(uint64(len(data)))
	c.observer.FragmentReceived(len(data))

	started := time.Now()
	block, err := c.decoder.Decode(seq, data)
	if err != nil {
		c.decodeErrors.Add(1)
		c.observer.DecodeFailed()
		log.Warn("Controller: skipping undecodable fragment", "seq", seq, "bytes", len(data), "err", err)
		return err
	}
	c.observer.FragmentDecoded(time.Since(started))

	if err := c.scheduler.Enqueue(block); err != nil {
		if errors.Is(err, ErrBufferFull) {
			c.observer.FragmentDropped()
			log.Debug("Controller: buffer full, dropping fragment", "seq", seq)
		}
		return err
	}
	return nil
}

// StreamComplete ends the stream. By default buffered audio is flushed;
// with DrainOnComplete it is played out first.
func (c *Controller) StreamComplete() {
	if c.config.DrainOnComplete {
		log.Debug("Controller: stream complete, draining", "session", c.id)
		c.scheduler.Drain()
		return
	}
	log.Debug("Controller: stream complete, flushing", "session", c.id)
	c.Cleanup()
}

// Pause halts playback; a no-op unless playing
func (c *Controller) Pause() {
	c.scheduler.Pause()
}

// Resume continues paused playback; a no-op unless paused
func (c *Controller) Resume() {
	c.scheduler.Resume()
}

// SetPlaybackRate sets the speed for the sounding block, anything already
// queued on the device and every later block, and returns the value applied after clamping
func (c *Controller) SetPlaybackRate(rate float64) float64 {
	rate = ClampRate(rate)

	c.mu.Lock()
	c.rate = rate
	c.mu.Unlock()

	c.scheduler.SetRate(rate)
	return rate
}

// SetVolume sets the output gain, including for audio already playing, and
// returns the value applied after clamping
func (c *Controller) SetVolume(volume float64) float64 {
	volume = ClampVolume(volume)

	c.mu.Lock()
	c.volume = volume
	c.mu.Unlock()

	c.device.SetVolume(volume)
	return volume
}

// Cleanup returns the session to its initial empty Idle state. It is safe
// to call at any time and any number of times.
func (c *Controller) Cleanup() {
	c.scheduler.Reset()
	c.received.Store(0)
	c.receivedBytes.Store(0)
	c.decodeErrors.Store(0)
}

// Status returns the current session snapshot
func (c *Controller) Status() Snapshot {
	snap := c.scheduler.Snapshot()

	c.mu.Lock()
	rate, volume := c.rate, c.volume
	c.mu.Unlock()

	s := Snapshot{
		SessionID:       c.id,
		State:           snap.State,
		Occupancy:       snap.Occupancy,
		Capacity:        snap.Capacity,
		BufferedSeconds: snap.Buffered.Seconds(),
		DropCount:       snap.Stats.Dropped,
		DecodeErrors:    c.decodeErrors.Load(),
		DeviceErrors:    snap.Stats.DeviceErrors,
		Received:        c.received.Load(),
		ReceivedBytes:   c.receivedBytes.Load(),
		Played:          snap.Stats.Played,
		PlayedSeconds:   snap.Stats.PlayedDuration.Seconds(),
		PlaybackRate:    rate,
		Volume:          volume,
	}

	if snap.Fault != nil {
		s.Fault = snap.Fault.Error()
		s.Status = FaultStatus(snap.Fault)
	} else {
		s.Status = Report(snap.State, snap.Occupancy, snap.Capacity, snap.Buffered)
	}
	return s
}
