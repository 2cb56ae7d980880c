// ABOUTME: Audio sources for the demo feed
// ABOUTME: Generates a test tone or decodes MP3 and FLAC files into 24-bit samples
package feed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// Source provides interleaved PCM samples in the 24-bit range
type Source interface {
	// Read fills samples and returns how many were written; io.EOF ends the stream
	Read(samples []int32) (int, error)
	SampleRate() int
	Channels() int
	// Title names the source for logs
	Title() string
	Close() error
}

// OpenSource opens path by extension. An empty path gives a test tone
// lasting toneLength, or forever when toneLength is zero.
func OpenSource(path string, toneLength time.Duration) (Source, error) {
	if path == "" {
		return NewToneSource(440, 48000, 2, toneLength), nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return NewMP3Source(path)
	case ".flac":
		return NewFLACSource(path)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac)", ext)
	}
}

// ToneSource generates a sine wave
type ToneSource struct {
	frequency  float64
	sampleRate int
	channels   int
	frame      int64
	limit      int64 // total frames; 0 means endless
}

// NewToneSource creates a half-scale sine at frequency Hz
func NewToneSource(frequency float64, sampleRate, channels int, length time.Duration) *ToneSource {
	return &ToneSource{
		frequency:  frequency,
		sampleRate: sampleRate,
		channels:   channels,
		limit:      audio.DurationToFrames(length, sampleRate),
	}
}

func (s *ToneSource) Read(samples []int32) (int, error) {
	frames := int64(len(samples) / s.channels)
	if s.limit > 0 {
		frames = min(frames, s.limit-s.frame)
		if frames <= 0 {
			return 0, io.EOF
		}
	}

	for i := int64(0); i < frames; i++ {
		t := float64(s.frame+i) / float64(s.sampleRate)
		v := int32(math.Sin(2*math.Pi*s.frequency*t) * 8388607 * 0.5)
		for ch := 0; ch < s.channels; ch++ {
			samples[int(i)*s.channels+ch] = v
		}
	}
	s.frame += frames
	return int(frames) * s.channels, nil
}

func (s *ToneSource) SampleRate() int { return s.sampleRate }
func (s *ToneSource) Channels() int   { return s.channels }
func (s *ToneSource) Title() string   { return fmt.Sprintf("Test Tone %.0fHz", s.frequency) }
func (s *ToneSource) Close() error    { return nil }

// MP3Source decodes an MP3 file; go-mp3 always yields 16-bit stereo
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	buf     []byte
	title   string
}

// NewMP3Source opens an MP3 file
func NewMP3Source(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	s := &MP3Source{file: f, decoder: decoder, title: titleOf(path)}
	log.Info("Feed: loaded MP3", "title", s.title, "rate", decoder.SampleRate())
	return s, nil
}

func (s *MP3Source) Read(samples []int32) (int, error) {
	if cap(s.buf) < len(samples)*2 {
		s.buf = make([]byte, len(samples)*2)
	}
	buf := s.buf[:len(samples)*2]

	n, err := io.ReadFull(s.decoder, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	if n == 0 && err == nil {
		err = io.EOF
	}

	count := n / 2
	for i := 0; i < count; i++ {
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}
	return count, err
}

func (s *MP3Source) SampleRate() int { return s.decoder.SampleRate() }
func (s *MP3Source) Channels() int   { return 2 }
func (s *MP3Source) Title() string   { return s.title }
func (s *MP3Source) Close() error    { return s.file.Close() }

// FLACSource decodes a FLAC file frame by frame
type FLACSource struct {
	file     *os.File
	stream   *flac.Stream
	channels int
	bitDepth int
	pending  []int32 // decoded samples not yet returned
	title    string
}

// NewFLACSource opens a FLAC file
func NewFLACSource(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	s := &FLACSource{
		file:     f,
		stream:   stream,
		channels: int(stream.Info.NChannels),
		bitDepth: int(stream.Info.BitsPerSample),
		title:    titleOf(path),
	}
	log.Info("Feed: loaded FLAC", "title", s.title, "rate", stream.Info.SampleRate,
		"channels", s.channels, "bits", s.bitDepth)
	return s, nil
}

func (s *FLACSource) Read(samples []int32) (int, error) {
	for len(s.pending) < len(samples) {
		frame, err := s.stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < s.channels; ch++ {
				s.pending = append(s.pending, to24(frame.Subframes[ch].Samples[i], s.bitDepth))
			}
		}
	}

	if len(s.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(samples, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *FLACSource) SampleRate() int { return int(s.stream.Info.SampleRate) }
func (s *FLACSource) Channels() int   { return s.channels }
func (s *FLACSource) Title() string   { return s.title }
func (s *FLACSource) Close() error    { return s.file.Close() }

// to24 scales a sample of the given bit depth to the 24-bit range
func to24(sample int32, bitDepth int) int32 {
	if bitDepth > 24 {
		return sample >> (bitDepth - 24)
	}
	return sample << (24 - bitDepth)
}

func titleOf(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
