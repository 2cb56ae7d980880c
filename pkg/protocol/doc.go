// ABOUTME: Fragment channel wire protocol package
// ABOUTME: Defines channel messages and the websocket client
// Package protocol implements the fragment channel between a feed and a player.
//
// The channel is a websocket at /ws/audio. Text messages are JSON:
//
//	{"type":"audio_chunk","data":"<base64 fragment>"}
//	{"type":"stream_complete"}
//
// Binary messages carry one raw fragment each.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{ServerAddr: "localhost:8927"})
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	for msg := range client.Messages {
//		...
//	}
package protocol
