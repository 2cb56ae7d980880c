// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between sample rates and playback speeds
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation. Each call converts one whole block, so a block
// always maps to a predictable number of output frames and consecutive
// blocks can be laid end to end on a device timeline.
//
// Example:
//
//	r := resample.NewWithSpeed(24000, 48000, 1, 1.5)
//	out := r.Resample(block.Samples)
package resample
