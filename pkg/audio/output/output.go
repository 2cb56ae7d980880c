// ABOUTME: Audio output device interface definition
// ABOUTME: Common scheduling interface implemented by every playback backend
package output

import (
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
)

var (
	// ErrClosed is returned by a device after Close
	ErrClosed = errors.New("audio device closed")

	// ErrUnavailable means the backend cannot produce sound at all
	ErrUnavailable = errors.New("audio device unavailable")

	// ErrCanceled is passed to completion callbacks of blocks dropped before they started
	ErrCanceled = errors.New("scheduled block canceled")

	// ErrInvalidBlock is returned for blocks with no usable samples or layout
	ErrInvalidBlock = errors.New("invalid audio block")
)

// Span is where a block sits on the device timeline
type Span struct {
	Seq   uint64
	Start time.Duration
	End   time.Duration
}

// Device is an audio sink with its own clock. Blocks are placed on the
// device timeline at an explicit start time and rendered without any
// further involvement from the caller.
type Device interface {
	// Now returns the current position of the device clock
	Now() time.Duration

	// Schedule places a block on the timeline at the given instant, played at
	// the given speed, and returns where it actually landed. A following block
	// joins without a gap when scheduled at the returned End. done is called
	// exactly once, asynchronously, when the block has finished rendering or
	// was dropped. Schedule never blocks on playback and never calls done itself.
	Schedule(b audio.Block, at time.Duration, rate float64, done func(error)) (Span, error)

	// SetRate re-times every scheduled block to a new speed from the current
	// position on, the sounding block included. Blocks that were back to back
	// stay back to back. It returns the new spans in timeline order.
	SetRate(rate float64) []Span

	// SetVolume sets the output gain (0.0-1.0); applies to audio already scheduled
	SetVolume(volume float64)

	// Suspend halts the device clock
	Suspend() error

	// Resume restarts the device clock where it stopped
	Resume() error

	// CancelPending drops scheduled blocks that have not started sounding
	CancelPending()

	// Clear drops every scheduled block, including a partially rendered one
	Clear()

	// Close releases the device
	Close() error
}

// Open creates a device for the named backend
func Open(backend string, sampleRate, channels int) (Device, error) {
	switch backend {
	case "oto", "":
		dev, err := NewOto(sampleRate, channels)
		if err != nil {
			return nil, err
		}
		return dev, nil
	case "beep":
		dev, err := NewBeep(sampleRate)
		if err != nil {
			return nil, err
		}
		return dev, nil
	case "null":
		return NewNull(sampleRate, channels), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %s", backend)
	}
}
