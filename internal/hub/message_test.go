package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBodyContentTypes(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantKind    Kind
		wantErr     bool
	}{
		{"json is text", "application/json", []byte(`{"q":1}`), KindText, false},
		{"plain text", "text/plain", []byte("hello"), KindText, false},
		{"text with charset", "text/plain; charset=utf-8", []byte("hello"), KindText, false},
		{"html is text", "text/html", []byte("<p>hi</p>"), KindText, false},
		{"octet-stream is binary", "application/octet-stream", []byte{0x01, 0xff}, KindBinary, false},
		{"missing type is binary", "", []byte{0xff, 0xfe}, KindBinary, false},
		{"protobuf is binary", "application/x-protobuf", []byte{0x08, 0x96}, KindBinary, false},
		{"invalid utf-8 text rejected", "text/plain", []byte{0xff, 0xfe}, 0, true},
		{"invalid utf-8 json rejected", "application/json", []byte{0xc3, 0x28}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := EncodeBody(tt.contentType, tt.body)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidUTF8)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, msg.Kind)
			assert.Equal(t, tt.body, msg.Payload)
		})
	}
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModePingPong, ParseMode("ping_pong"))
	assert.Equal(t, ModeShot, ParseMode("shot"))
	assert.Equal(t, ModeShot, ParseMode(""))
	// Anything unrecognized degrades to shot.
	assert.Equal(t, ModeShot, ParseMode("banana"))
}
