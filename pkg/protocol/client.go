// ABOUTME: WebSocket client for the audio fragment channel
// ABOUTME: Handles connection and delivers fragments and stream events in order
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Config holds client configuration
type Config struct {
	ServerAddr       string
	Path             string
	HandshakeTimeout time.Duration
}

// Client receives fragments from a feed server.
//
// Messages delivers audio chunks and stream completion in arrival order;
// binary frames are delivered as audio chunks. The channel is closed when
// the connection ends.
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	Messages chan Message

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = AudioPath
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:   config,
		Messages: make(chan Message, 100),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Connect dials the feed and starts the reader
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	log.Info("Client: connecting", "url", u.String())

	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readMessages()
	return nil
}

// readMessages reads and routes incoming messages until the connection ends
func (c *Client) readMessages() {
	defer close(c.done)
	defer close(c.Messages)
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !errors.Is(c.ctx.Err(), context.Canceled) && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
				log.Warn("Client: read error", "err", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.deliver(AudioChunk(data))
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		default:
			log.Debug("Client: ignoring websocket message", "type", messageType)
		}
	}
}

func (c *Client) handleJSONMessage(data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		log.Warn("Client: failed to parse message", "err", err)
		return
	}

	switch msg.Type {
	case TypeAudioChunk, TypeStreamComplete:
		c.deliver(msg)
	default:
		log.Warn("Client: unknown message type", "type", msg.Type)
	}
}

func (c *Client) deliver(msg Message) {
	select {
	case c.Messages <- msg:
	case <-c.ctx.Done():
	}
}

// Done is closed once the reader has stopped and Messages is closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, or nil after a clean close
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
		log.Info("Client: connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
