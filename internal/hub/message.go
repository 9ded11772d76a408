package hub

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Kind identifies the WebSocket frame a Message maps to.
type Kind uint8

const (
	KindText Kind = iota + 1
	KindBinary
	KindPing
	KindPong
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindClose:
		return "close"
	default:
		return "unknown"
	}
}

// Message is one outbound WebSocket frame. Text payloads carry a UTF-8
// validity contract enforced at construction.
type Message struct {
	Kind    Kind
	Payload []byte
}

func TextMessage(payload []byte) Message {
	return Message{Kind: KindText, Payload: payload}
}

func BinaryMessage(payload []byte) Message {
	return Message{Kind: KindBinary, Payload: payload}
}

// PingMessage is the heartbeat frame. Payload is empty.
func PingMessage() Message {
	return Message{Kind: KindPing}
}

// CloseMessage is an explicit close request for a connection's writer. The
// payload is a pre-formatted close frame body, status code plus optional
// reason. The writer sends it and exits without draining anything queued
// behind it.
func CloseMessage(payload []byte) Message {
	return Message{Kind: KindClose, Payload: payload}
}

// ErrInvalidUTF8 is returned by EncodeBody when a text or JSON content type
// declares a body that is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("invalid UTF-8 in body")

// EncodeBody translates an HTTP request body into a Message.
//
// Content types beginning with "application/json" or "text/" produce a text
// frame and require the body to be valid UTF-8. Everything else produces a
// binary frame with the bytes as-is.
func EncodeBody(contentType string, body []byte) (Message, error) {
	if strings.HasPrefix(contentType, "application/json") || strings.HasPrefix(contentType, "text/") {
		if !utf8.Valid(body) {
			return Message{}, ErrInvalidUTF8
		}
		return TextMessage(body), nil
	}
	return BinaryMessage(body), nil
}

// Mode selects the single-publish delivery behavior.
type Mode uint8

const (
	// ModeShot enqueues the payload to one subscriber and returns.
	ModeShot Mode = iota
	// ModePingPong enqueues the payload and waits for the subscriber's next
	// data frame as the HTTP response body.
	ModePingPong
)

// ParseMode maps the "mode" query parameter to a Mode. Unrecognized values
// and the empty string fall back to ModeShot.
func ParseMode(s string) Mode {
	if s == "ping_pong" {
		return ModePingPong
	}
	return ModeShot
}

func (m Mode) String() string {
	if m == ModePingPong {
		return "ping_pong"
	}
	return "shot"
}
