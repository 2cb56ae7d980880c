// ABOUTME: WAV audio encoder
// ABOUTME: Wraps each fragment of int32 samples in a complete RIFF/WAVE container
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
)

const wavHeaderSize = 44

// WAVEncoder encodes self-describing WAV fragments
type WAVEncoder struct {
	sampleRate int
	channels   int
	bitDepth   int
}

// NewWAV creates a new WAV encoder
func NewWAV(format audio.Format) (Encoder, error) {
	if format.Codec != "wav" {
		return nil, fmt.Errorf("invalid codec for WAV encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("invalid WAV layout: %d Hz, %d channels", format.SampleRate, format.Channels)
	}

	return &WAVEncoder{
		sampleRate: format.SampleRate,
		channels:   format.Channels,
		bitDepth:   format.BitDepth,
	}, nil
}

// Encode converts int32 samples into one WAV file
func (e *WAVEncoder) Encode(samples []int32) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	blockAlign := e.channels * e.bitDepth / 8
	dataSize := len(samples) * e.bitDepth / 8

	buf := make([]byte, 0, wavHeaderSize+dataSize)
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataSize))
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, uint16(e.channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(e.sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(e.sampleRate*blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(e.bitDepth))

	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataSize))
	return appendPCM(buf, samples, e.bitDepth), nil
}

// Close releases resources
func (e *WAVEncoder) Close() error {
	return nil
}
