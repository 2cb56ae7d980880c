// ABOUTME: Main player application orchestration
// ABOUTME: Coordinates feed connection, playback session, metrics server and UI
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/gapless-go/internal/config"
	"github.com/Resonate-Protocol/gapless-go/internal/metrics"
	"github.com/Resonate-Protocol/gapless-go/internal/ui"
	"github.com/Resonate-Protocol/gapless-go/pkg/audio/output"
	"github.com/Resonate-Protocol/gapless-go/pkg/discovery"
	"github.com/Resonate-Protocol/gapless-go/pkg/playback"
	"github.com/Resonate-Protocol/gapless-go/pkg/protocol"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	discoveryTimeout = 10 * time.Second
	reconnectDelay   = 2 * time.Second
)

// errQuit ends the run group when the user quits the TUI
var errQuit = errors.New("quit requested")

// Player represents the main player application
type Player struct {
	config     *config.Config
	device     output.Device
	controller *playback.Controller
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	tui        *ui.TUI

	// ReconnectDelay is the pause before a new session once a connection ends
	ReconnectDelay time.Duration

	// OnError is called for failures the user should see; defaults to logging
	OnError func(error)
}

// New creates a player around an opened output device
func New(cfg *config.Config, device output.Device) *Player {
	p := &Player{
		config:         cfg,
		device:         device,
		registry:       prometheus.NewRegistry(),
		ReconnectDelay: reconnectDelay,
	}
	p.metrics = metrics.NewMetrics(p.registry)

	pc := cfg.PlaybackConfig()
	pc.OnError = p.notifyError
	pc.OnStateChange = func(sc playback.StateChange) {
		log.Info("Player: state change", "from", sc.From, "to", sc.To)
	}
	p.controller = playback.NewController(device, pc, playback.WithObserver(p.metrics))
	return p
}

// Controller returns the playback session
func (p *Player) Controller() *playback.Controller {
	return p.controller
}

// Run connects to the feed and plays until ctx is canceled or the user quits
func (p *Player) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if p.config.Metrics.Addr != "" {
		srv := metrics.NewServer(p.config.Metrics.Addr, p.registry, p.controller.Status)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	if p.config.TUI {
		p.tui = ui.New(p.controller, p.config.Server)
		g.Go(func() error {
			if err := p.tui.Run(); err != nil {
				return fmt.Errorf("TUI failed: %w", err)
			}
			return errQuit
		})
		g.Go(func() error {
			<-ctx.Done()
			p.tui.Stop()
			return nil
		})
	}

	g.Go(func() error {
		return p.stream(ctx)
	})

	err := g.Wait()
	p.controller.Cleanup()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// stream keeps a connection to the feed open. The protocol client never
// retries, so each dropped connection ends in a fresh session here.
func (p *Player) stream(ctx context.Context) error {
	for {
		addr, err := p.resolve(ctx)
		if err != nil {
			return err
		}

		if err := p.session(ctx, addr); err != nil {
			p.notifyError(err)
		}
		p.setConnection(false, addr)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.ReconnectDelay):
		}
	}
}

// resolve returns the configured feed address or browses for one
func (p *Player) resolve(ctx context.Context) (string, error) {
	if p.config.Server != "" {
		return p.config.Server, nil
	}

	log.Info("Player: browsing for feeds")
	dctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	feed, err := discovery.Discover(dctx)
	if err != nil {
		return "", err
	}
	log.Info("Player: discovered feed", "name", feed.Name, "addr", feed.Addr())
	return feed.Addr(), nil
}

// session plays one connection to completion
func (p *Player) session(ctx context.Context, addr string) error {
	client := protocol.NewClient(protocol.Config{ServerAddr: addr})
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer client.Close()

	p.setConnection(true, addr)
	log.Info("Player: connected", "addr", addr, "session", p.controller.ID())

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-client.Messages:
			if !ok {
				st := p.controller.Status()
				log.Info("Player: feed disconnected", "received", humanize.Bytes(st.ReceivedBytes), "played", st.Played)
				return client.Err()
			}
			p.handle(msg)
		}
	}
}

// handle applies one channel message to the playback session
func (p *Player) handle(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeAudioChunk:
		// Failures are counted by the controller and never end the stream
		if err := p.controller.OnFragmentReceived(msg.Data); errors.Is(err, playback.ErrDeviceFault) {
			log.Debug("Player: fragment refused after device fault")
		}
	case protocol.TypeStreamComplete:
		log.Info("Player: stream complete")
		p.controller.StreamComplete()
	}
}

func (p *Player) setConnection(connected bool, addr string) {
	if p.tui != nil {
		p.tui.SetConnection(connected, addr)
	}
}

// notifyError reports an error via the OnError callback, or logs it
func (p *Player) notifyError(err error) {
	if p.OnError != nil {
		p.OnError(err)
		return
	}
	log.Error("Player: error", "err", err)
}
