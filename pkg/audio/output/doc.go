// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Device interface, the shared Timeline and oto/beep/null backends
// Package output provides audio devices that play blocks at exact positions
// on their own clock.
//
// Every backend embeds a Timeline. The timeline's clock is the number of
// frames the backend has pulled, so suspending the backend freezes it.
// Schedule reports the span a block really occupies after resampling;
// scheduling the next block at that span's End renders the two with no gap
// and no overlap.
//
// Backends:
//   - Oto: sound card through github.com/ebitengine/oto/v3
//   - Beep: sound card through the github.com/gopxl/beep/v2 speaker
//   - Null: discards audio in real time, for headless use
//
// Example:
//
//	dev, err := output.Open("oto", 48000, 2)
//	span, err := dev.Schedule(block, dev.Now(), 1.0, func(err error) { ... })
//	_, err = dev.Schedule(next, span.End, 1.0, nil)
package output
