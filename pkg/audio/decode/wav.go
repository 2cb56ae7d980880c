// ABOUTME: WAV container decoder
// ABOUTME: Parses RIFF/WAVE fragments and decodes their PCM payload
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

var errWAVHeader = errors.New("malformed WAV header")

// WAVDecoder decodes one complete RIFF/WAVE fragment per call
type WAVDecoder struct {
	format audio.Format
}

// NewWAV creates a new WAV decoder
func NewWAV(format audio.Format) (Decoder, error) {
	if format.Codec != "wav" {
		return nil, fmt.Errorf("invalid codec for WAV decoder: %s", format.Codec)
	}
	return &WAVDecoder{format: format}, nil
}

// Decode parses the RIFF chunks and converts the data chunk to int32 samples
func (d *WAVDecoder) Decode(data []byte) ([]int32, error) {
	format, payload, err := parseWAV(data)
	if err != nil {
		return nil, err
	}

	pcm, err := NewPCM(format)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	samples, err := pcm.Decode(payload)
	if err != nil {
		return nil, err
	}

	format.Codec = "wav"
	d.format = format
	return samples, nil
}

// Format returns the layout of the last decoded fragment
func (d *WAVDecoder) Format() audio.Format {
	return d.format
}

// Close releases decoder resources
func (d *WAVDecoder) Close() error {
	return nil
}

// parseWAV walks the RIFF chunk list and returns the PCM layout and the data chunk
func parseWAV(data []byte) (audio.Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return audio.Format{}, nil, errWAVHeader
	}

	var (
		format  audio.Format
		haveFmt bool
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return audio.Format{}, nil, fmt.Errorf("%w: short fmt chunk", errWAVHeader)
			}
			tag := binary.LittleEndian.Uint16(data[body:])
			if tag != wavFormatPCM && tag != wavFormatExtensible {
				return audio.Format{}, nil, fmt.Errorf("%w: WAV format tag %#x", ErrUnsupported, tag)
			}
			format = audio.Format{
				Codec:      "pcm",
				Channels:   int(binary.LittleEndian.Uint16(data[body+2:])),
				SampleRate: int(binary.LittleEndian.Uint32(data[body+4:])),
				BitDepth:   int(binary.LittleEndian.Uint16(data[body+14:])),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return audio.Format{}, nil, fmt.Errorf("%w: data chunk before fmt chunk", errWAVHeader)
			}
			// Streamed WAVs often carry a placeholder size; take what is present
			end := body + size
			if size < 0 || end > len(data) || end < body {
				end = len(data)
			}
			return format, data[body:end], nil
		}

		// Chunks are word aligned
		offset = body + size + size%2
		if offset < body {
			break
		}
	}

	return audio.Format{}, nil, fmt.Errorf("%w: no data chunk", errWAVHeader)
}
