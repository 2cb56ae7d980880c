// ABOUTME: Fragment decoder turning one network fragment into a Block
// ABOUTME: Detects the container from magic bytes and dispatches to a codec decoder
package decode

import (
	"bytes"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
)

// FragmentDecoder decodes independently encoded fragments. It holds no
// per-stream state, so concurrent calls are safe.
type FragmentDecoder struct {
	fallback audio.Format
}

// NewFragmentDecoder creates a fragment decoder. The fallback format is used
// for fragments with no recognizable container (raw PCM or Opus packets).
func NewFragmentDecoder(fallback audio.Format) *FragmentDecoder {
	return &FragmentDecoder{fallback: fallback}
}

// Decode turns one fragment into a block carrying the given sequence index.
// Every failure is a *DecodeError.
func (f *FragmentDecoder) Decode(seq uint64, data []byte) (audio.Block, error) {
	if len(data) == 0 {
		return audio.Block{}, &DecodeError{Seq: seq, Err: ErrEmptyFragment}
	}

	format := f.fallback
	format.Codec = Sniff(data, f.fallback.Codec)

	dec, err := New(format)
	if err != nil {
		return audio.Block{}, &DecodeError{Seq: seq, Codec: format.Codec, Err: err}
	}
	defer dec.Close()

	samples, err := dec.Decode(data)
	if err != nil {
		return audio.Block{}, &DecodeError{Seq: seq, Codec: format.Codec, Err: err}
	}

	block := audio.NewBlock(seq, samples, dec.Format())
	if block.Frames() == 0 || block.Duration <= 0 {
		return audio.Block{}, &DecodeError{Seq: seq, Codec: format.Codec, Err: ErrEmptyFragment}
	}
	return block, nil
}

// Sniff names the codec of a fragment from its leading bytes. Bare MPEG
// frame sync is only trusted when no fallback codec is configured, since
// headerless PCM can start with the same bit pattern.
func Sniff(data []byte, fallback string) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "ogg"
	case fallback == "" && len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}
	return fallback
}
