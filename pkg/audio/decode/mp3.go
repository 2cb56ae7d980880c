// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes complete MP3 fragments to int32 samples
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MP3 audio. Each call to Decode handles one
// self-contained run of MPEG frames.
type MP3Decoder struct {
	format audio.Format
}

// NewMP3 creates a new MP3 decoder
func NewMP3(format audio.Format) (Decoder, error) {
	if format.Codec != "mp3" {
		return nil, fmt.Errorf("invalid codec for MP3 decoder: %s", format.Codec)
	}

	return &MP3Decoder{format: format}, nil
}

// Decode converts MP3 bytes to int32 samples
func (d *MP3Decoder) Decode(data []byte) ([]int32, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	// go-mp3 always produces 16-bit little-endian stereo
	pcm, err := io.ReadAll(decoder)
	if err != nil && len(pcm) == 0 {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}
	pcm = pcm[:len(pcm)-len(pcm)%4]
	if len(pcm) == 0 {
		return nil, ErrEmptyFragment
	}

	d.format = audio.Format{
		Codec:      "mp3",
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}
	return samplesFromInt16LE(pcm), nil
}

// Format returns the layout of the last decoded fragment
func (d *MP3Decoder) Format() audio.Format {
	return d.format
}

// Close releases decoder resources
func (d *MP3Decoder) Close() error {
	return nil
}
