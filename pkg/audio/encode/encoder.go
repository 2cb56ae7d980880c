// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all audio encoders plus a codec factory
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
)

// Encoder encodes PCM int32 samples to various formats
type Encoder interface {
	// Encode converts PCM samples to one self-contained encoded fragment
	Encode(samples []int32) ([]byte, error)

	// Close releases encoder resources
	Close() error
}

// New creates an encoder for the codec named in format
func New(format audio.Format) (Encoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "wav":
		return NewWAV(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("unsupported codec for encoding: %s", format.Codec)
	}
}
