// ABOUTME: Entry point for the demo fragment feed
// ABOUTME: Parses CLI flags and serves a tone or audio file as encoded fragments
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/gapless-go/internal/feed"
	"github.com/Resonate-Protocol/gapless-go/internal/logging"
	"github.com/Resonate-Protocol/gapless-go/internal/version"
	"github.com/charmbracelet/log"
)

func main() {
	defaults := feed.DefaultConfig()

	addr := flag.String("addr", defaults.Addr, "Listen address")
	name := flag.String("name", "", "mDNS name (default: hostname-gapless-feed)")
	noMDNS := flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	source := flag.String("audio", "", "MP3 or FLAC file to stream; empty streams a test tone")
	toneLength := flag.Duration("tone-length", defaults.ToneLength, "Test tone length (0 streams forever)")
	codec := flag.String("codec", defaults.Format.Codec, "Fragment codec: wav, pcm or opus")
	sampleRate := flag.Int("rate", defaults.Format.SampleRate, "Fragment sample rate")
	channels := flag.Int("channels", defaults.Format.Channels, "Fragment channels")
	bitDepth := flag.Int("bits", defaults.Format.BitDepth, "Fragment bit depth for wav and pcm (16 or 24)")
	fragment := flag.Duration("fragment", defaults.FragmentLength, "Fragment length (opus always uses 60ms)")
	burst := flag.Int("burst", defaults.Burst, "Fragments sent back to back before pacing")
	pace := flag.Float64("pace", defaults.Pace, "Send speed relative to real time")
	jitter := flag.Duration("jitter", 0, "Largest random extra delay between fragments")
	binary := flag.Bool("binary", false, "Send raw binary frames instead of JSON messages")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFile := flag.String("log-file", "gapless-feed.log", "Log file path")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	closer, err := logging.Setup(*logLevel, *logFile, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gapless-feed: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	feedName := *name
	if feedName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		feedName = hostname + "-gapless-feed"
	}

	config := defaults
	config.Addr = *addr
	config.Name = feedName
	config.EnableMDNS = !*noMDNS
	config.Source = *source
	config.ToneLength = *toneLength
	config.Format.Codec = *codec
	config.Format.SampleRate = *sampleRate
	config.Format.Channels = *channels
	config.Format.BitDepth = *bitDepth
	config.FragmentLength = *fragment
	config.Burst = *burst
	config.Pace = *pace
	config.Jitter = *jitter
	config.Binary = *binary

	log.Info("Starting feed", "name", feedName, "version", version.Version, "fragment", config.FragmentLength.Round(time.Millisecond))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := feed.New(config).Run(ctx); err != nil {
		log.Error("Feed stopped", "err", err)
		os.Exit(1)
	}
	log.Info("Feed stopped")
}
