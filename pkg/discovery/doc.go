// ABOUTME: mDNS service discovery package
// ABOUTME: Discover and advertise audio feeds on the local network
// Package discovery provides mDNS discovery of audio feeds.
//
// A feed advertises a _gapless._tcp service whose TXT record names the
// websocket path. Players browse for it when no address is configured.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
//	defer cancel()
//	feed, err := discovery.Discover(ctx)
//	fmt.Println(feed.Addr(), feed.Path)
package discovery
