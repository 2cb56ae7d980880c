// ABOUTME: Tests for mDNS service discovery
// ABOUTME: Validates Manager defaults, entry conversion and lifecycle
package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager(Config{ServiceName: "kitchen", Port: 8927})
	defer m.Stop()

	assert.Equal(t, "/ws/audio", m.config.Path)
	assert.Equal(t, 3*time.Second, m.config.BrowseInterval)
	assert.NotNil(t, m.Servers())
}

func TestServerFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "kitchen._gapless._tcp.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       8927,
		InfoFields: []string{"path=/feed"},
	}

	server := serverFromEntry(entry)
	require.NotNil(t, server)
	assert.Equal(t, "kitchen", server.Name)
	assert.Equal(t, "192.168.1.20:8927", server.Addr())
	assert.Equal(t, "/feed", server.Path)
}

func TestServerFromEntryDefaults(t *testing.T) {
	server := serverFromEntry(&mdns.ServiceEntry{Name: "x", AddrV6: net.ParseIP("fe80::1"), Port: 1})
	require.NotNil(t, server)
	assert.Equal(t, "/ws/audio", server.Path)
	assert.Equal(t, "[fe80::1]:1", server.Addr())

	assert.Nil(t, serverFromEntry(&mdns.ServiceEntry{Name: "no address"}))
}

func TestDiscoverHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Discover(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManagerStopIsIdempotent(t *testing.T) {
	m := NewManager(Config{})
	m.Stop()
	m.Stop()
	assert.Error(t, m.ctx.Err())
}
