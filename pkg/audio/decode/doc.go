// ABOUTME: Audio decoder package
// ABOUTME: Decodes network fragments in WAV, FLAC, MP3, Opus and PCM to int32 samples
// Package decode turns encoded audio into int32 samples in the 24-bit range.
//
// FragmentDecoder is the entry point for streaming playback: each fragment
// is decoded on its own, its container detected from magic bytes, and the
// result returned as an audio.Block. Failures are reported as *DecodeError
// and only ever cost the one fragment.
//
// Example:
//
//	dec := decode.NewFragmentDecoder(audio.Format{Codec: "pcm", SampleRate: 24000, Channels: 1, BitDepth: 16})
//	block, err := dec.Decode(seq, fragment)
//	var decErr *decode.DecodeError
//	if errors.As(err, &decErr) {
//	    // skip this fragment
//	}
package decode
