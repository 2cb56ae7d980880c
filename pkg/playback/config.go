// ABOUTME: Playback engine configuration and parameter ranges
// ABOUTME: Defines defaults and the clamping applied to rate and volume
package playback

import (
	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
)

// Parameter ranges. Out-of-range values are clamped, never rejected.
const (
	MinPlaybackRate = 0.5
	MaxPlaybackRate = 4.0
	MinVolume       = 0.0
	MaxVolume       = 1.0
)

// Defaults
const (
	DefaultStartThreshold    = 4
	DefaultCapacity          = 8
	DefaultLookAhead         = 0.2
	DefaultMaxDeviceFailures = 3
)

// Config holds playback engine configuration
type Config struct {
	// StartThreshold is the number of buffered blocks needed before a cold start
	StartThreshold int

	// Capacity is the maximum number of buffered blocks; more are dropped
	Capacity int

	// PlaybackRate is the playback speed (0.5-4.0)
	PlaybackRate float64

	// Volume is the output gain (0.0-1.0); 0 is silent
	Volume float64

	// LookAhead is the fraction of a block left when the next one is scheduled
	LookAhead float64

	// MaxDeviceFailures is how many consecutive device errors end playback
	MaxDeviceFailures int

	// DrainOnComplete plays out buffered audio on stream-complete instead of flushing it
	DrainOnComplete bool

	// Format is assumed for fragments that carry no container header
	Format audio.Format

	// OnStateChange is called after every state transition
	OnStateChange func(StateChange)

	// OnError is called when the output device fails for good
	OnError func(error)
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		StartThreshold:    DefaultStartThreshold,
		Capacity:          DefaultCapacity,
		PlaybackRate:      1.0,
		Volume:            1.0,
		LookAhead:         DefaultLookAhead,
		MaxDeviceFailures: DefaultMaxDeviceFailures,
		Format: audio.Format{
			Codec:      "pcm",
			SampleRate: 24000,
			Channels:   1,
			BitDepth:   16,
		},
	}
}

// withDefaults fills unset fields and clamps the rest into range
func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.StartThreshold <= 0 {
		c.StartThreshold = DefaultStartThreshold
	}
	if c.StartThreshold > c.Capacity {
		c.StartThreshold = c.Capacity
	}
	if c.PlaybackRate == 0 {
		c.PlaybackRate = 1.0
	}
	c.PlaybackRate = ClampRate(c.PlaybackRate)
	c.Volume = ClampVolume(c.Volume)
	if c.LookAhead <= 0 || c.LookAhead >= 1 {
		c.LookAhead = DefaultLookAhead
	}
	if c.MaxDeviceFailures <= 0 {
		c.MaxDeviceFailures = DefaultMaxDeviceFailures
	}
	return c
}

// ClampRate limits a playback rate to the supported range
func ClampRate(rate float64) float64 {
	return clamp(rate, MinPlaybackRate, MaxPlaybackRate)
}

// ClampVolume limits a volume to the supported range
func ClampVolume(volume float64) float64 {
	return clamp(volume, MinVolume, MaxVolume)
}

func clamp(v, lo, hi float64) float64 {
	// NaN compares false everywhere, map it to the low end
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
