// ABOUTME: Player configuration loaded with koanf
// ABOUTME: Layers defaults, a TOML file, GAPLESS_ environment variables and flag overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/gapless-go/pkg/audio"
	"github.com/Resonate-Protocol/gapless-go/pkg/playback"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides; "__" separates nested keys,
// so GAPLESS_BUFFER__CAPACITY sets buffer.capacity
const EnvPrefix = "GAPLESS_"

type Config struct {
	Server   string         `koanf:"server"`   // feed address host:port; empty means discover
	Discover bool           `koanf:"discover"` // browse mDNS when Server is empty
	TUI      bool           `koanf:"tui"`
	Buffer   BufferConfig   `koanf:"buffer"`
	Playback PlaybackConfig `koanf:"playback"`
	Output   OutputConfig   `koanf:"output"`
	Stream   StreamConfig   `koanf:"stream"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

type BufferConfig struct {
	StartThreshold int `koanf:"start_threshold"`
	Capacity       int `koanf:"capacity"`
}

type PlaybackConfig struct {
	Rate              float64 `koanf:"rate"`
	Volume            float64 `koanf:"volume"`
	LookAhead         float64 `koanf:"lookahead"`
	DrainOnComplete   bool    `koanf:"drain_on_complete"`
	MaxDeviceFailures int     `koanf:"max_device_failures"`
}

// OutputConfig selects the audio backend: "oto", "beep" or "null"
type OutputConfig struct {
	Backend    string `koanf:"backend"`
	SampleRate int    `koanf:"sample_rate"`
	Channels   int    `koanf:"channels"`
}

// StreamConfig is the format assumed for fragments without a container header
type StreamConfig struct {
	Codec      string `koanf:"codec"`
	SampleRate int    `koanf:"sample_rate"`
	Channels   int    `koanf:"channels"`
	BitDepth   int    `koanf:"bit_depth"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
	File  string `koanf:"file"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr"` // empty disables the metrics server
}

// Defaults returns the flat default key set
func Defaults() map[string]any {
	return map[string]any{
		"discover":                     true,
		"tui":                          true,
		"buffer.start_threshold":       playback.DefaultStartThreshold,
		"buffer.capacity":              playback.DefaultCapacity,
		"playback.rate":                1.0,
		"playback.volume":              1.0,
		"playback.lookahead":           playback.DefaultLookAhead,
		"playback.drain_on_complete":   false,
		"playback.max_device_failures": playback.DefaultMaxDeviceFailures,
		"output.backend":               "oto",
		"output.sample_rate":           48000,
		"output.channels":              2,
		"stream.codec":                 "pcm",
		"stream.sample_rate":           24000,
		"stream.channels":              1,
		"stream.bit_depth":             16,
		"log.level":                    "info",
		"log.file":                     "gapless.log",
	}
}

// Load builds the configuration. An empty path tries the usual locations
// and skips missing files; an explicit path must exist. Overrides, usually
// from command-line flags, are applied last.
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	paths := []string{path}
	if path == "" {
		paths = getConfigPaths()
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if path != "" {
				return nil, fmt.Errorf("config file: %w", err)
			}
			continue
		}
		if err := k.Load(file.Provider(p), toml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", p, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("loading overrides: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	cfg.Log.File = expandPath(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps GAPLESS_PLAYBACK__DRAIN_ON_COMPLETE to playback.drain_on_complete
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/gapless/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gapless", "config.toml"))
	}

	// 2. ./gapless.toml (pwd, highest priority)
	paths = append(paths, "gapless.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Validate rejects settings that cannot work. Rate and volume are
// clamped later instead.
func (c *Config) Validate() error {
	var errs []error

	if c.Buffer.Capacity < 1 {
		errs = append(errs, fmt.Errorf("buffer.capacity must be at least 1, got %d", c.Buffer.Capacity))
	}
	if c.Buffer.StartThreshold < 1 {
		errs = append(errs, fmt.Errorf("buffer.start_threshold must be at least 1, got %d", c.Buffer.StartThreshold))
	}
	switch c.Output.Backend {
	case "oto", "beep", "null":
	default:
		errs = append(errs, fmt.Errorf("output.backend must be oto, beep or null, got %q", c.Output.Backend))
	}
	if c.Output.SampleRate <= 0 || c.Output.Channels <= 0 {
		errs = append(errs, fmt.Errorf("output layout %d Hz, %d channels is invalid", c.Output.SampleRate, c.Output.Channels))
	}
	if c.Stream.BitDepth != 16 && c.Stream.BitDepth != 24 {
		errs = append(errs, fmt.Errorf("stream.bit_depth must be 16 or 24, got %d", c.Stream.BitDepth))
	}
	if c.Stream.SampleRate <= 0 || c.Stream.Channels <= 0 {
		errs = append(errs, fmt.Errorf("stream layout %d Hz, %d channels is invalid", c.Stream.SampleRate, c.Stream.Channels))
	}
	if c.Server == "" && !c.Discover {
		errs = append(errs, errors.New("no server address and discovery disabled"))
	}

	return errors.Join(errs...)
}

// StreamFormat returns the fallback format for headerless fragments
func (c *Config) StreamFormat() audio.Format {
	return audio.Format{
		Codec:      c.Stream.Codec,
		SampleRate: c.Stream.SampleRate,
		Channels:   c.Stream.Channels,
		BitDepth:   c.Stream.BitDepth,
	}
}

// PlaybackConfig returns the engine configuration. Host callbacks are left
// for the caller to set.
func (c *Config) PlaybackConfig() playback.Config {
	return playback.Config{
		StartThreshold:    c.Buffer.StartThreshold,
		Capacity:          c.Buffer.Capacity,
		PlaybackRate:      playback.ClampRate(c.Playback.Rate),
		Volume:            playback.ClampVolume(c.Playback.Volume),
		LookAhead:         c.Playback.LookAhead,
		MaxDeviceFailures: c.Playback.MaxDeviceFailures,
		DrainOnComplete:   c.Playback.DrainOnComplete,
		Format:            c.StreamFormat(),
	}
}
