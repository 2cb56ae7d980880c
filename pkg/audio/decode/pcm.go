// ABOUTME: PCM audio decoder
// ABOUTME: Decodes headerless 16-bit and 24-bit PCM audio to int32 samples
package decode

import (
	"fmt"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	format audio.Format
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("invalid PCM layout: %d Hz, %d channels", format.SampleRate, format.Channels)
	}

	return &PCMDecoder{
		format: format,
	}, nil
}

// Decode converts PCM bytes to int32 samples. Trailing bytes that do not
// complete a frame are discarded.
func (d *PCMDecoder) Decode(data []byte) ([]int32, error) {
	bytesPerSample := d.format.BitDepth / 8
	frameBytes := bytesPerSample * d.format.Channels
	data = data[:len(data)-len(data)%frameBytes]

	if d.format.BitDepth == 16 {
		return samplesFromInt16LE(data), nil
	}

	// 24-bit PCM: 3 bytes per sample
	numSamples := len(data) / 3
	samples := make([]int32, numSamples)
	for i := 0; i < numSamples; i++ {
		samples[i] = audio.SampleFrom24Bit([3]byte{data[i*3], data[i*3+1], data[i*3+2]})
	}
	return samples, nil
}

// Format returns the configured PCM layout
func (d *PCMDecoder) Format() audio.Format {
	return d.format
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
