// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, decoded blocks and sample conversions
package audio

import (
	"fmt"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes audio stream format
type Format struct {
	Codec       string
	SampleRate  int
	Channels    int
	BitDepth    int
	CodecHeader []byte // For FLAC, Opus, etc.
}

// String renders the format as codec/rate/channels/bits for logs
func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch %dbit", f.Codec, f.SampleRate, f.Channels, f.BitDepth)
}

// Block is one decoded, render-ready segment of audio.
//
// A Block is never modified after construction. It is owned by the playback
// buffer while queued and by the output device while it is being rendered.
type Block struct {
	Seq      uint64        // Arrival sequence index
	Samples  []int32       // Interleaved PCM samples in 24-bit range
	Format   Format        // Sample rate and channel layout of Samples
	Duration time.Duration // Playback length at rate 1.0
}

// NewBlock builds a block and derives its duration from the sample count
func NewBlock(seq uint64, samples []int32, format Format) Block {
	return Block{
		Seq:      seq,
		Samples:  samples,
		Format:   format,
		Duration: FramesToDuration(frameCount(len(samples), format.Channels), format.SampleRate),
	}
}

// Frames returns the number of sample frames in the block
func (b Block) Frames() int {
	return frameCount(len(b.Samples), b.Format.Channels)
}

// Seconds returns the block duration in seconds
func (b Block) Seconds() float64 {
	return b.Duration.Seconds()
}

func frameCount(samples, channels int) int {
	if channels <= 0 {
		return 0
	}
	return samples / channels
}

// FramesToDuration converts a frame count at the given rate into a duration
func FramesToDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(sampleRate))
}

// DurationToFrames converts a duration into a frame count at the given rate, rounding to nearest
func DurationToFrames(d time.Duration, sampleRate int) int64 {
	return (int64(d)*int64(sampleRate) + int64(time.Second)/2) / int64(time.Second)
}

// Remix converts interleaved samples between channel layouts.
// Downmixing averages source channels; upmixing repeats them.
func Remix(samples []int32, from, to int) []int32 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}
	frames := len(samples) / from
	out := make([]int32, frames*to)
	for f := 0; f < frames; f++ {
		src := samples[f*from : f*from+from]
		dst := out[f*to : f*to+to]
		if to < from {
			for c := range dst {
				var sum int64
				n := 0
				for s := c; s < from; s += to {
					sum += int64(src[s])
					n++
				}
				dst[c] = int32(sum / int64(n))
			}
			continue
		}
		for c := range dst {
			dst[c] = src[c%from]
		}
	}
	return out
}

// Clamp24 limits a sample to the signed 24-bit range
func Clamp24(v int64) int32 {
	if v > Max24Bit {
		return Max24Bit
	}
	if v < Min24Bit {
		return Min24Bit
	}
	return int32(v)
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// SampleToFloat converts a 24-bit range sample to [-1, 1]
func SampleToFloat(sample int32) float64 {
	return float64(sample) / float64(Max24Bit+1)
}
