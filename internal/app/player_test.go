// ABOUTME: Tests for player application orchestration
// ABOUTME: Streams fragments from a local feed into a headless output device
package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/gapless-go/internal/config"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/encode"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/output"
	"github.com/Resonate-Protocol/gapless-go/pkg/playback"
	"github.com/Resonate-Protocol/gapless-go/pkg/protocol"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(server string) *config.Config {
	return &config.Config{
		Server: server,
		Buffer: config.BufferConfig{StartThreshold: 2, Capacity: 8},
		Playback: config.PlaybackConfig{
			Rate:            1.0,
			Volume:          1.0,
			DrainOnComplete: true,
		},
		Output: config.OutputConfig{Backend: "null", SampleRate: 8000, Channels: 1},
		Stream: config.StreamConfig{Codec: "pcm", SampleRate: 8000, Channels: 1, BitDepth: 16},
	}
}

func wavFragments(t *testing.T, n int, d time.Duration) [][]byte {
	t.Helper()
	enc, err := encode.NewWAV(audio.Format{Codec: "wav", SampleRate: 8000, Channels: 1, BitDepth: 16})
	require.NoError(t, err)

	frags := make([][]byte, n)
	for i := range frags {
		frags[i], err = enc.Encode(make([]int32, audio.DurationToFrames(d, 8000)))
		require.NoError(t, err)
	}
	return frags
}

func newFeed(t *testing.T, frags [][]byte) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.AudioPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i, f := range frags {
			if i%2 == 0 {
				conn.WriteMessage(websocket.BinaryMessage, f)
			} else {
				conn.WriteJSON(protocol.AudioChunk(f))
			}
		}
		conn.WriteJSON(protocol.StreamComplete())
		// Hold the connection open until the client leaves
		conn.ReadMessage()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestPlayerPlaysFeedToCompletion(t *testing.T) {
	frags := wavFragments(t, 5, 50*time.Millisecond)
	cfg := testConfig(newFeed(t, frags))

	device := output.NewNull(cfg.Output.SampleRate, cfg.Output.Channels)
	defer device.Close()
	p := New(cfg, device)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		st := p.Controller().Status()
		return st.Played == 5 && st.State == playback.Idle
	}, 5*time.Second, 10*time.Millisecond)

	st := p.Controller().Status()
	assert.Equal(t, uint64(5), st.Received)
	assert.Zero(t, st.DecodeErrors)
	assert.Zero(t, st.DropCount)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("player did not stop")
	}
}

func TestPlayerReportsConnectionFailures(t *testing.T) {
	cfg := testConfig("127.0.0.1:1")
	device := output.NewNull(8000, 1)
	defer device.Close()

	var (
		mu   sync.Mutex
		errs []error
	)
	p := New(cfg, device)
	p.OnError = func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	assert.NoError(t, p.Run(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "connecting to 127.0.0.1:1")
}

func TestPlayerStartsNewSessionAfterDisconnect(t *testing.T) {
	var connects atomic.Int32
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.AudioPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connects.Add(1)
		conn.Close()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	device := output.NewNull(8000, 1)
	defer device.Close()
	p := New(testConfig(strings.TrimPrefix(srv.URL, "http://")), device)
	p.ReconnectDelay = 20 * time.Millisecond
	p.OnError = func(error) {}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return connects.Load() >= 3
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("player did not stop")
	}
}

func TestHandleMessages(t *testing.T) {
	cfg := testConfig("unused:0")
	cfg.Playback.DrainOnComplete = false
	device := output.NewNull(8000, 1)
	defer device.Close()
	p := New(cfg, device)

	frags := wavFragments(t, 1, 20*time.Millisecond)
	p.handle(protocol.AudioChunk(frags[0]))
	p.handle(protocol.AudioChunk([]byte("RIFF\x00\x00\x00\x00WAVE")))
	assert.Equal(t, 1, p.Controller().Status().Occupancy)
	assert.Equal(t, uint64(1), p.Controller().Status().DecodeErrors)

	p.handle(protocol.StreamComplete())
	assert.Equal(t, playback.Idle, p.Controller().Status().State)
	assert.Zero(t, p.Controller().Status().Occupancy)
}

func TestNotifyErrorFallsBackToLog(t *testing.T) {
	device := output.NewNull(8000, 1)
	defer device.Close()
	p := New(testConfig("unused:0"), device)
	assert.NotPanics(t, func() { p.notifyError(errors.New("boom")) })
}
