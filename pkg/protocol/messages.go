// ABOUTME: Message types for the audio fragment channel
// ABOUTME: JSON envelopes for audio chunks and stream completion
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// AudioPath is the websocket endpoint that carries fragments
	AudioPath = "/ws/audio"

	// TypeAudioChunk carries one encoded fragment, base64 in JSON
	TypeAudioChunk = "audio_chunk"

	// TypeStreamComplete marks the end of the stream
	TypeStreamComplete = "stream_complete"
)

// ErrMissingType is returned for a JSON message without a type field
var ErrMissingType = errors.New("message has no type")

// Message is one event on the fragment channel. Data is only set for
// audio chunks; encoding/json carries it as base64.
type Message struct {
	Type string `json:"type"`
	Data []byte `json:"data,omitempty"`
}

// AudioChunk builds an audio chunk message
func AudioChunk(data []byte) Message {
	return Message{Type: TypeAudioChunk, Data: data}
}

// StreamComplete builds a stream complete message
func StreamComplete() Message {
	return Message{Type: TypeStreamComplete}
}

// ParseMessage decodes a JSON text message
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("invalid message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, ErrMissingType
	}
	return msg, nil
}
