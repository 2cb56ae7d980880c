// ABOUTME: Tests for the demo feed server
// ABOUTME: Streams a short tone to a real client and decodes what arrives
package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/gapless-go/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		ToneLength:     time.Second,
		Format:         audio.Format{Codec: "wav", SampleRate: 8000, Channels: 1, BitDepth: 16},
		FragmentLength: 250 * time.Millisecond,
		Pace:           100,
	}
}

func receive(t *testing.T, cfg Config) []protocol.Message {
	t.Helper()
	srv := httptest.NewServer(New(cfg).Handler())
	t.Cleanup(srv.Close)

	client := protocol.NewClient(protocol.Config{ServerAddr: strings.TrimPrefix(srv.URL, "http://")})
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(client.Close)

	var got []protocol.Message
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-client.Messages:
			if !ok {
				return got
			}
			got = append(got, msg)
		case <-timeout:
			t.Fatal("timed out waiting for the stream")
		}
	}
}

func TestFeedStreamsToneAsFragments(t *testing.T) {
	msgs := receive(t, testConfig())
	require.Len(t, msgs, 5)

	dec := decode.NewFragmentDecoder(audio.Format{Codec: "pcm", SampleRate: 8000, Channels: 1, BitDepth: 16})
	for i, msg := range msgs[:4] {
		require.Equal(t, protocol.TypeAudioChunk, msg.Type)
		b, err := dec.Decode(uint64(i+1), msg.Data)
		require.NoError(t, err)
		assert.Equal(t, 250*time.Millisecond, b.Duration)
		assert.Equal(t, 8000, b.Format.SampleRate)
	}
	assert.Equal(t, protocol.TypeStreamComplete, msgs[4].Type)
}

func TestFeedBinaryFrames(t *testing.T) {
	cfg := testConfig()
	cfg.Binary = true
	cfg.Format.Codec = "pcm"

	msgs := receive(t, cfg)
	require.Len(t, msgs, 5)
	for _, msg := range msgs[:4] {
		assert.Equal(t, protocol.TypeAudioChunk, msg.Type)
		assert.Len(t, msg.Data, 2000*2)
	}
	assert.Equal(t, protocol.TypeStreamComplete, msgs[4].Type)
}

func TestFeedPartialLastFragment(t *testing.T) {
	cfg := testConfig()
	cfg.ToneLength = 600 * time.Millisecond

	msgs := receive(t, cfg)
	require.Len(t, msgs, 4)

	dec := decode.NewFragmentDecoder(cfg.Format)
	b, err := dec.Decode(3, msgs[2].Data)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, b.Duration)
}

func TestFeedMissingSourceSendsNothing(t *testing.T) {
	cfg := testConfig()
	cfg.Source = "/nonexistent/track.mp3"

	msgs := receive(t, cfg)
	assert.Empty(t, msgs)
}

func TestFeedCustomSource(t *testing.T) {
	cfg := testConfig()
	cfg.NewSource = func() (Source, error) {
		return NewToneSource(220, 8000, 1, 500*time.Millisecond), nil
	}

	msgs := receive(t, cfg)
	require.Len(t, msgs, 3)
	assert.Equal(t, protocol.TypeStreamComplete, msgs[2].Type)
}

func TestFeedDelay(t *testing.T) {
	s := New(Config{Burst: 2, Pace: 2, Jitter: 50 * time.Millisecond})

	assert.Zero(t, s.delay(1, time.Second))
	assert.Zero(t, s.delay(2, time.Second))
	for i := 0; i < 20; i++ {
		d := s.delay(3, time.Second)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.Less(t, d, 550*time.Millisecond)
	}
}

func TestFit(t *testing.T) {
	assert.Equal(t, []int32{1, 2}, fit([]int32{1, 2, 3}, 2))
	assert.Equal(t, []int32{1, 0, 0}, fit([]int32{1}, 3))
}

func TestFeedRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(cfg).Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFeedRunBadAddr(t *testing.T) {
	cfg := testConfig()
	cfg.Addr = "256.0.0.1:99999"
	assert.Error(t, New(cfg).Run(context.Background()))
}
