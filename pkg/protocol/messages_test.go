// ABOUTME: Tests for fragment channel messages
// ABOUTME: Checks the JSON wire shape and parse errors
package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioChunkWireFormat(t *testing.T) {
	data, err := json.Marshal(AudioChunk([]byte{0x01, 0x02, 0x03}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"audio_chunk","data":"AQID"}`, string(data))

	data, err = json.Marshal(StreamComplete())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"stream_complete"}`, string(data))
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"audio_chunk","data":"UklGRg=="}`))
	require.NoError(t, err)
	assert.Equal(t, TypeAudioChunk, msg.Type)
	assert.Equal(t, []byte("RIFF"), msg.Data)

	_, err = ParseMessage([]byte(`{"data":"AQID"}`))
	assert.ErrorIs(t, err, ErrMissingType)

	_, err = ParseMessage([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseMessage([]byte(`{"type":"audio_chunk","data":"!!"}`))
	assert.Error(t, err, "bad base64 is rejected")
}
