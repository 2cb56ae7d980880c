// ABOUTME: Demo feed server streaming encoded fragments over websocket
// ABOUTME: Each connection gets its own source, encoder and stream id
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/encode"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/resample"
	"github.com/Resonate-Protocol/gapless-go/pkg/discovery"
	"github.com/Resonate-Protocol/gapless-go/pkg/protocol"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const writeTimeout = 10 * time.Second

// Config holds feed configuration
type Config struct {
	Addr       string // listen address
	Name       string // mDNS instance name
	EnableMDNS bool

	// Source is an MP3 or FLAC path; empty streams a test tone of ToneLength
	Source     string
	ToneLength time.Duration
	// NewSource, when set, replaces Source and ToneLength
	NewSource func() (Source, error)

	// Format is the fragment encoding; wav fragments are self-describing,
	// pcm and opus need a matching stream format on the player
	Format audio.Format

	FragmentLength time.Duration
	// Burst fragments go out back to back before pacing starts
	Burst int
	// Pace is the send speed relative to real time
	Pace float64
	// Jitter is the largest random extra delay between sends
	Jitter time.Duration
	// Binary sends raw fragments in binary frames instead of JSON
	Binary bool
}

// DefaultConfig returns a feed that streams 30s of tone as WAV fragments
func DefaultConfig() Config {
	return Config{
		Addr:           ":8927",
		Name:           "gapless-feed",
		EnableMDNS:     true,
		ToneLength:     30 * time.Second,
		Format:         audio.Format{Codec: "wav", SampleRate: 24000, Channels: 1, BitDepth: 16},
		FragmentLength: 500 * time.Millisecond,
		Burst:          2,
		Pace:           1.0,
	}
}

// Server accepts players on protocol.AudioPath
type Server struct {
	config   Config
	upgrader websocket.Upgrader

	mu      sync.Mutex
	streams map[string]context.CancelFunc
}

// New creates a feed server
func New(config Config) *Server {
	if config.FragmentLength <= 0 {
		config.FragmentLength = 500 * time.Millisecond
	}
	if config.Pace <= 0 {
		config.Pace = 1.0
	}
	if config.Format.BitDepth == 0 {
		config.Format.BitDepth = 16
	}

	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			// Local network demo; any origin may listen
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		streams: make(map[string]context.CancelFunc),
	}
}

// Handler returns the HTTP handler serving the audio path
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.AudioPath, s.handleAudio)
	return mux
}

// Run listens on Config.Addr and advertises over mDNS until ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	httpServer := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	log.Info("Feed: listening", "addr", ln.Addr().String(), "path", protocol.AudioPath, "format", s.config.Format.String())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if s.config.EnableMDNS {
		mdns := discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        ln.Addr().(*net.TCPAddr).Port,
			Path:        protocol.AudioPath,
		})
		if err := mdns.Advertise(); err != nil {
			log.Warn("Feed: mDNS advertisement failed", "err", err)
		}
		defer mdns.Stop()
	}

	g.Go(func() error {
		<-ctx.Done()
		s.stopStreams()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Feed: websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.track(id, cancel)
	defer s.untrack(id)

	// The player never sends; a read error means it went away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	log.Info("Feed: player connected", "stream", id, "remote", r.RemoteAddr)
	if err := s.stream(ctx, id, conn); err != nil {
		if ctx.Err() == nil {
			log.Warn("Feed: stream failed", "stream", id, "err", err)
		}
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream complete"))
}

// stream sends every fragment of a fresh source, then stream_complete
func (s *Server) stream(ctx context.Context, id string, conn *websocket.Conn) error {
	src, err := s.openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	format := s.config.Format
	enc, err := encode.New(format)
	if err != nil {
		return err
	}
	defer enc.Close()

	frames := int(audio.DurationToFrames(s.config.FragmentLength, format.SampleRate))
	if opus, ok := enc.(*encode.OpusEncoder); ok {
		frames = opus.FrameSize()
	}
	length := audio.FramesToDuration(frames, format.SampleRate)

	rs := resample.New(src.SampleRate(), format.SampleRate, format.Channels)
	srcFrames := max(1, frames*src.SampleRate()/format.SampleRate)
	buf := make([]int32, srcFrames*src.Channels())

	log.Info("Feed: streaming", "stream", id, "source", src.Title(), "codec", format.Codec, "fragment", length)

	var sent, bytes uint64
	for seq := 1; ; seq++ {
		n, readErr := readFull(src, buf)
		if n > 0 {
			samples := rs.Resample(audio.Remix(buf[:n], src.Channels(), format.Channels))
			if format.Codec == "opus" {
				samples = fit(samples, frames*format.Channels)
			}

			data, err := enc.Encode(samples)
			if err != nil {
				return fmt.Errorf("encoding fragment %d: %w", seq, err)
			}
			if err := s.send(conn, data); err != nil {
				return err
			}
			sent++
			bytes += uint64(len(data))
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return fmt.Errorf("reading source: %w", readErr)
		}

		if err := sleep(ctx, s.delay(seq, length)); err != nil {
			return err
		}
	}

	log.Info("Feed: stream complete", "stream", id, "fragments", sent, "bytes", humanize.Bytes(bytes))
	return s.write(conn, protocol.StreamComplete())
}

func (s *Server) openSource() (Source, error) {
	if s.config.NewSource != nil {
		return s.config.NewSource()
	}
	return OpenSource(s.config.Source, s.config.ToneLength)
}

func (s *Server) send(conn *websocket.Conn, data []byte) error {
	if s.config.Binary {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteMessage(websocket.BinaryMessage, data)
	}
	return s.write(conn, protocol.AudioChunk(data))
}

func (s *Server) write(conn *websocket.Conn, msg protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// delay is the wait after fragment seq
func (s *Server) delay(seq int, length time.Duration) time.Duration {
	if seq <= s.config.Burst {
		return 0
	}
	d := time.Duration(float64(length) / s.config.Pace)
	if s.config.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(s.config.Jitter)))
	}
	return d
}

func (s *Server) track(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[id] = cancel
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, id)
}

func (s *Server) stopStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.streams {
		cancel()
	}
}

// readFull reads until buf is full or the source ends
func readFull(src Source, buf []int32) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := src.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
	}
	return total, nil
}

// fit pads with silence or truncates to exactly n samples
func fit(samples []int32, n int) []int32 {
	if len(samples) >= n {
		return samples[:n]
	}
	return append(samples, make([]int32, n-len(samples))...)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
