// ABOUTME: Demo fragment feed package
// ABOUTME: Serves tone or file audio as independently encoded fragments over websocket
// Package feed implements the demo fragment feed used to exercise the player.
//
// Every websocket connection on protocol.AudioPath opens a fresh source (a
// test tone, an MP3 or a FLAC file), cuts it into independently encoded
// fragments and sends them paced near real time, optionally with random
// jitter to imitate bursty delivery. The stream ends with stream_complete.
package feed
