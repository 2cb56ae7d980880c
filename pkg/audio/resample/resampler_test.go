// ABOUTME: Tests for the linear resampler
// ABOUTME: Covers frame counts, interpolation and speed changes
package resample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResamplePassthrough(t *testing.T) {
	r := New(48000, 48000, 2)
	in := []int32{1, 2, 3, 4, 5}

	out := r.Resample(in)
	assert.Equal(t, []int32{1, 2, 3, 4}, out)
}

func TestResampleUpsample(t *testing.T) {
	r := New(24000, 48000, 1)
	require.InDelta(t, 0.5, r.Ratio(), 1e-12)

	out := r.Resample([]int32{0, 100, 200})
	require.Len(t, out, 6)
	assert.Equal(t, []int32{0, 50, 100, 150, 200, 200}, out)
}

func TestResampleDownsampleStereo(t *testing.T) {
	r := New(48000, 24000, 2)

	out := r.Resample([]int32{0, 0, 10, -10, 20, -20, 30, -30})
	assert.Equal(t, []int32{0, 0, 20, -20}, out)
}

func TestResampleSpeed(t *testing.T) {
	r := NewWithSpeed(48000, 48000, 1, 2.0)
	assert.Equal(t, 24000, r.OutputFrames(48000))

	slow := NewWithSpeed(48000, 48000, 1, 0.5)
	assert.Equal(t, 96000, slow.OutputFrames(48000))

	fallback := NewWithSpeed(48000, 48000, 1, 0)
	assert.Equal(t, 1.0, fallback.Ratio())
}

func TestResampleEmpty(t *testing.T) {
	r := New(24000, 48000, 2)
	assert.Empty(t, r.Resample(nil))
	assert.Zero(t, r.OutputFrames(0))
}
