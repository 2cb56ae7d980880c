// ABOUTME: Error values for the playback engine
// ABOUTME: Buffer backpressure, device failure and fault sentinels
package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferFull is returned when a block arrives while the buffer is at capacity
	ErrBufferFull = errors.New("playback buffer full")

	// ErrBufferEmpty is returned when dequeuing from an empty buffer
	ErrBufferEmpty = errors.New("playback buffer empty")

	// ErrDeviceFault is returned for new audio once the device has failed for good
	ErrDeviceFault = errors.New("audio device failed")
)

// DeviceError reports a block the output device refused or failed to play
type DeviceError struct {
	Seq uint64
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device rejected block %d: %v", e.Seq, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
