// ABOUTME: Audio encoder package for encoding PCM to fragment formats
// ABOUTME: Provides Encoder interface and implementations for PCM, WAV, Opus
// Package encode produces the fragments a feed sends to players.
//
// Supports: PCM (16-bit and 24-bit), WAV (one RIFF container per fragment), Opus
//
// All encoders accept int32 samples in 24-bit range.
//
// Example:
//
//	encoder, err := encode.New(audio.Format{Codec: "wav", SampleRate: 24000, Channels: 1, BitDepth: 16})
//	fragment, err := encoder.Encode(samples)
package encode
