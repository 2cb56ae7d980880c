// ABOUTME: Decoder interface definition and error types
// ABOUTME: Common interface for all audio decoders plus a codec factory
package decode

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
)

var (
	// ErrUnsupported is returned for codecs or containers no decoder handles
	ErrUnsupported = errors.New("unsupported audio format")

	// ErrEmptyFragment is returned when a fragment carries no audio frames
	ErrEmptyFragment = errors.New("fragment contains no audio")
)

// Decoder decodes audio in various formats to PCM int32 samples
type Decoder interface {
	// Decode converts encoded audio data to PCM samples
	Decode(data []byte) ([]int32, error)

	// Format reports the layout of the samples returned by the last Decode.
	// Self-describing containers (WAV, MP3, FLAC) learn it from the data.
	Format() audio.Format

	// Close releases decoder resources
	Close() error
}

// DecodeError reports a fragment that could not be turned into audio.
// It only ever costs that one fragment.
type DecodeError struct {
	Seq   uint64
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Codec == "" {
		return fmt.Sprintf("decode fragment %d: %v", e.Seq, e.Err)
	}
	return fmt.Sprintf("decode fragment %d (%s): %v", e.Seq, e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// New creates a decoder for the codec named in format
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "wav":
		return NewWAV(format)
	case "opus":
		return NewOpus(format)
	case "mp3":
		return NewMP3(format)
	case "flac":
		return NewFLAC(format)
	default:
		return nil, fmt.Errorf("%w: codec %q", ErrUnsupported, format.Codec)
	}
}

// samplesFromInt16LE converts little-endian 16-bit PCM bytes into 24-bit range samples
func samplesFromInt16LE(data []byte) []int32 {
	numSamples := len(data) / 2
	samples := make([]int32, numSamples)
	for i := 0; i < numSamples; i++ {
		sample16 := int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
		samples[i] = audio.SampleFromInt16(sample16)
	}
	return samples
}
