// ABOUTME: Tests for the playback session controller
// ABOUTME: Feeds encoded fragments through decode, buffer and scheduler into a simulated device
package playback

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/encode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wavFragment encodes d of a quiet tone as a standalone WAV file
func wavFragment(t *testing.T, d time.Duration) []byte {
	t.Helper()
	format := testFormat
	format.Codec = "wav"

	enc, err := encode.NewWAV(format)
	require.NoError(t, err)
	defer enc.Close()

	samples := make([]int32, int(d/time.Millisecond))
	for i := range samples {
		samples[i] = int32((i%20 - 10) * 1000)
	}
	data, err := enc.Encode(samples)
	require.NoError(t, err)
	return data
}

func newTestController(t *testing.T, mutate func(*Config)) (*Controller, *sim) {
	t.Helper()
	dev := newSim()
	cfg := DefaultConfig()
	cfg.Format = testFormat
	if mutate != nil {
		mutate(&cfg)
	}
	return NewController(dev, cfg, WithClock(dev)), dev
}

func TestControllerSkipsUndecodableFragment(t *testing.T) {
	c, dev := newTestController(t, nil)

	corrupt := append([]byte("RIFF\x00\x00\x00\x00WAVE"), []byte("not a chunk")...)
	for i := 1; i <= 10; i++ {
		frag := wavFragment(t, half)
		if i == 5 {
			frag = corrupt
		}

		err := c.OnFragmentReceived(frag)
		if i == 5 {
			var derr *decode.DecodeError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, uint64(5), derr.Seq)
		} else {
			require.NoError(t, err)
		}
		if i > 4 {
			dev.advance(half)
		}
	}
	dev.advance(10 * time.Second)

	assert.Equal(t, []uint64{1, 2, 3, 4, 6, 7, 8, 9, 10}, dev.seqs())
	requireContiguous(t, dev.scheduled())

	st := c.Status()
	assert.Equal(t, uint64(1), st.DecodeErrors)
	assert.Equal(t, uint64(10), st.Received)
	assert.Equal(t, uint64(9), st.Played)
	assert.InDelta(t, 4.5, st.PlayedSeconds, 1e-9)
	assert.Zero(t, st.DropCount)
}

func TestControllerEmptyFragment(t *testing.T) {
	c, _ := newTestController(t, nil)

	err := c.OnFragmentReceived(nil)
	assert.ErrorIs(t, err, decode.ErrEmptyFragment)
	assert.Equal(t, Idle, c.Status().State)
}

func TestControllerDropsWhenFull(t *testing.T) {
	c, dev := newTestController(t, func(cfg *Config) {
		cfg.StartThreshold = 1
		cfg.Capacity = 2
	})

	require.NoError(t, c.OnFragmentReceived(wavFragment(t, half)))
	c.Pause()
	require.NoError(t, c.OnFragmentReceived(wavFragment(t, half)))
	require.NoError(t, c.OnFragmentReceived(wavFragment(t, half)))

	err := c.OnFragmentReceived(wavFragment(t, half))
	assert.ErrorIs(t, err, ErrBufferFull)

	st := c.Status()
	assert.Equal(t, Paused, st.State)
	assert.Equal(t, uint64(1), st.DropCount)
	assert.Equal(t, 2, st.Occupancy)
	assert.Equal(t, 100, st.Status.Percentage)
	assert.Len(t, dev.scheduled(), 1)
}

func TestControllerClampsParameters(t *testing.T) {
	c, dev := newTestController(t, nil)

	assert.Equal(t, 4.0, c.SetPlaybackRate(10))
	assert.Equal(t, 0.5, c.SetPlaybackRate(0.1))
	assert.Equal(t, 1.0, c.SetVolume(1.7))
	assert.Equal(t, 0.0, c.SetVolume(-1))

	st := c.Status()
	assert.Equal(t, 0.5, st.PlaybackRate)
	assert.Equal(t, 0.0, st.Volume)
	assert.Equal(t, 0.0, dev.volume)
	assert.Equal(t, 0.5, c.scheduler.Snapshot().Rate)
}

func TestControllerVolumeAppliesImmediately(t *testing.T) {
	c, dev := newTestController(t, func(cfg *Config) { cfg.StartThreshold = 1 })

	require.NoError(t, c.OnFragmentReceived(wavFragment(t, half)))
	c.SetVolume(0.3)
	assert.Equal(t, 0.3, dev.volume)
}

func TestControllerRateAppliesToSoundingBlock(t *testing.T) {
	c, dev := newTestController(t, func(cfg *Config) { cfg.StartThreshold = 1 })

	require.NoError(t, c.OnFragmentReceived(wavFragment(t, half)))
	dev.advance(100 * time.Millisecond)
	c.SetPlaybackRate(2)
	require.NoError(t, c.OnFragmentReceived(wavFragment(t, half)))
	dev.advance(time.Second)

	// The remaining 400ms of the first block play in 200ms
	calls := dev.scheduled()
	require.Len(t, calls, 2)
	assert.Equal(t, 2.0, calls[0].rate)
	assert.Equal(t, 300*time.Millisecond, calls[0].end())
	assert.Equal(t, 2.0, calls[1].rate)
	requireContiguous(t, calls)
}

func TestControllerCleanupIsIdempotent(t *testing.T) {
	c, dev := newTestController(t, func(cfg *Config) { cfg.StartThreshold = 1 })

	for i := 0; i < 3; i++ {
		require.NoError(t, c.OnFragmentReceived(wavFragment(t, half)))
	}
	dev.advance(200 * time.Millisecond)

	c.Cleanup()
	first := c.Status()
	c.Cleanup()
	second := c.Status()

	assert.Equal(t, first, second)
	assert.Equal(t, Idle, first.State)
	assert.Zero(t, first.Occupancy)
	assert.Zero(t, first.Received)
	assert.Equal(t, "idle", first.Status.Label)
	assert.Equal(t, c.ID(), first.SessionID)
}

func TestControllerStreamCompleteFlushes(t *testing.T) {
	c, dev := newTestController(t, nil)

	require.NoError(t, c.OnFragmentReceived(wavFragment(t, half)))
	require.NoError(t, c.OnFragmentReceived(wavFragment(t, half)))
	c.StreamComplete()

	assert.Equal(t, Idle, c.Status().State)
	assert.Zero(t, c.Status().Occupancy)
	dev.advance(time.Second)
	assert.Empty(t, dev.scheduled())
}

func TestControllerStreamCompleteDrains(t *testing.T) {
	c, dev := newTestController(t, func(cfg *Config) { cfg.DrainOnComplete = true })

	require.NoError(t, c.OnFragmentReceived(wavFragment(t, half)))
	require.NoError(t, c.OnFragmentReceived(wavFragment(t, half)))
	c.StreamComplete()
	assert.Equal(t, Playing, c.Status().State)

	dev.advance(2 * time.Second)
	st := c.Status()
	assert.Equal(t, Idle, st.State)
	assert.Equal(t, uint64(2), st.Played)
}

func TestControllerStatusJSON(t *testing.T) {
	c, _ := newTestController(t, nil)

	require.NoError(t, c.OnFragmentReceived(wavFragment(t, half)))
	data, err := json.Marshal(c.Status())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "buffering", decoded["state"])
	assert.Equal(t, float64(1), decoded["occupancy"])
	assert.InDelta(t, 0.5, decoded["buffered_seconds"], 1e-9)

	status := decoded["status"].(map[string]any)
	assert.Equal(t, "Buffering... Buffer: 0.5s (13%)", status["text"])
}

type fixedDecoder struct{ format audio.Format }

func (d fixedDecoder) Decode(seq uint64, data []byte) (audio.Block, error) {
	return audio.NewBlock(seq, make([]int32, len(data)), d.format), nil
}

func TestControllerCustomDecoder(t *testing.T) {
	dev := newSim()
	cfg := DefaultConfig()
	cfg.StartThreshold = 1
	c := NewController(dev, cfg, WithClock(dev), WithDecoder(fixedDecoder{format: testFormat}))

	require.NoError(t, c.OnFragmentReceived(make([]byte, 250)))
	calls := dev.scheduled()
	require.Len(t, calls, 1)
	assert.Equal(t, 250*time.Millisecond, calls[0].block.Duration)
}
