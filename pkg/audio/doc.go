// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Block types and sample conversion functions
// Package audio provides the audio types shared by the decoder, the playback
// engine and the output backends.
//
//   - Format: describes a stream or fragment format (codec, sample rate, channels, bit depth)
//   - Block: one decoded, immutable unit of audio with a sequence index and duration
//
// Samples are carried as interleaved int32 values in the signed 24-bit range,
// so 16-bit and 24-bit sources share one representation.
//
// Example:
//
//	format := audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}
//	block := audio.NewBlock(seq, samples, format)
//	fmt.Println(block.Duration)
package audio
