// ABOUTME: Entry point for the gapless streaming player
// ABOUTME: Parses CLI flags, loads configuration and runs the player application
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/gapless-go/internal/app"
	"github.com/Resonate-Protocol/gapless-go/internal/config"
	"github.com/Resonate-Protocol/gapless-go/internal/logging"
	"github.com/Resonate-Protocol/gapless-go/internal/version"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/output"
	"github.com/charmbracelet/log"
)

var (
	configFile  = flag.String("config", "", "Config file (default: ~/.config/gapless/config.toml, ./gapless.toml)")
	serverAddr  = flag.String("server", "", "Feed address host:port (skip mDNS)")
	backend     = flag.String("backend", "", "Audio backend: oto, beep or null")
	threshold   = flag.Int("threshold", 0, "Blocks buffered before playback starts")
	capacity    = flag.Int("capacity", 0, "Maximum buffered blocks")
	rate        = flag.Float64("rate", 0, "Playback speed (0.5-4.0)")
	volume      = flag.Float64("volume", -1, "Volume (0.0-1.0)")
	drain       = flag.Bool("drain", false, "Play out buffered audio when the stream completes")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFile     = flag.String("log-file", "", "Log file path")
	metricsAddr = flag.String("metrics", "", "Serve /metrics and /status on this address")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, stream logs to stderr instead")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// flagKeys maps flag names to configuration keys
var flagKeys = map[string]string{
	"server":    "server",
	"backend":   "output.backend",
	"threshold": "buffer.start_threshold",
	"capacity":  "buffer.capacity",
	"rate":      "playback.rate",
	"volume":    "playback.volume",
	"drain":     "playback.drain_on_complete",
	"log-level": "log.level",
	"log-file":  "log.file",
	"metrics":   "metrics.addr",
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gapless: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configFile, overrides())
	if err != nil {
		return err
	}

	closer, err := logging.Setup(cfg.Log.Level, cfg.Log.File, cfg.TUI)
	if err != nil {
		return err
	}
	defer closer.Close()

	log.Info("Starting player", "version", version.Version, "backend", cfg.Output.Backend, "server", cfg.Server)

	device, err := output.Open(cfg.Output.Backend, cfg.Output.SampleRate, cfg.Output.Channels)
	if err != nil {
		return fmt.Errorf("opening audio output: %w", err)
	}
	defer device.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	player := app.New(cfg, device)
	if err := player.Run(ctx); err != nil {
		return err
	}

	log.Info("Player stopped")
	return nil
}

// overrides collects flags set on the command line
func overrides() map[string]any {
	values := map[string]any{}
	flag.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			values[key] = f.Value.(flag.Getter).Get()
		}
	})
	if *noTUI {
		values["tui"] = false
	}
	return values
}
