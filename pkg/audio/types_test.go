// ABOUTME: Tests for audio types
// ABOUTME: Tests blocks, channel remixing and sample conversion functions
package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlockDuration(t *testing.T) {
	format := Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}
	samples := make([]int32, 24000*2)

	block := NewBlock(7, samples, format)

	assert.Equal(t, uint64(7), block.Seq)
	assert.Equal(t, 24000, block.Frames())
	assert.Equal(t, 500*time.Millisecond, block.Duration)
	assert.InDelta(t, 0.5, block.Seconds(), 1e-9)
}

func TestNewBlockZeroChannels(t *testing.T) {
	block := NewBlock(1, make([]int32, 10), Format{SampleRate: 48000})
	assert.Zero(t, block.Frames())
	assert.Zero(t, block.Duration)
}

func TestFrameDurationConversions(t *testing.T) {
	assert.Equal(t, time.Second, FramesToDuration(44100, 44100))
	assert.Equal(t, time.Duration(0), FramesToDuration(100, 0))
	assert.Equal(t, int64(4800), DurationToFrames(100*time.Millisecond, 48000))
	assert.Equal(t, int64(1), DurationToFrames(15*time.Microsecond, 48000))
}

func TestRemix(t *testing.T) {
	t.Run("mono to stereo", func(t *testing.T) {
		out := Remix([]int32{1, 2, 3}, 1, 2)
		assert.Equal(t, []int32{1, 1, 2, 2, 3, 3}, out)
	})

	t.Run("stereo to mono averages", func(t *testing.T) {
		out := Remix([]int32{10, 20, -4, 4}, 2, 1)
		assert.Equal(t, []int32{15, 0}, out)
	})

	t.Run("same layout is passthrough", func(t *testing.T) {
		in := []int32{1, 2}
		out := Remix(in, 2, 2)
		require.Len(t, out, 2)
		assert.Same(t, &in[0], &out[0])
	})
}

func TestClamp24(t *testing.T) {
	assert.Equal(t, int32(Max24Bit), Clamp24(Max24Bit+10))
	assert.Equal(t, int32(Min24Bit), Clamp24(Min24Bit-10))
	assert.Equal(t, int32(42), Clamp24(42))
}

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected int32
	}{
		{"zero", 0, 0},
		{"positive", 100, 100 << 8},
		{"negative", -100, -100 << 8},
		{"max", 32767, 32767 << 8},
		{"min", -32768, -32768 << 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SampleFromInt16(tt.input))
		})
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		expected int16
	}{
		{"zero", 0, 0},
		{"positive", 100 << 8, 100},
		{"negative", -100 << 8, -100},
		{"24bit positive", 1000000, 3906},
		{"24bit negative", -1000000, -3907},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SampleToInt16(tt.input))
		})
	}
}

func TestSample24BitPacking(t *testing.T) {
	assert.Equal(t, [3]byte{0x56, 0x34, 0x12}, SampleTo24Bit(0x123456))
	assert.Equal(t, [3]byte{0x00, 0xFF, 0xFF}, SampleTo24Bit(-256))
	assert.Equal(t, int32(-256), SampleFrom24Bit([3]byte{0x00, 0xFF, 0xFF}))
	assert.Equal(t, int32(Max24Bit), SampleFrom24Bit([3]byte{0xFF, 0xFF, 0x7F}))
	assert.Equal(t, int32(Min24Bit), SampleFrom24Bit([3]byte{0x00, 0x00, 0x80}))
}

func TestSampleToFloat(t *testing.T) {
	assert.InDelta(t, -1.0, SampleToFloat(Min24Bit), 1e-9)
	assert.InDelta(t, 0.5, SampleToFloat(1<<22), 1e-9)
}
