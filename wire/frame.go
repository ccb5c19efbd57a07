// Package wire defines the frames exchanged on live run-event connections
// and the codecs that serialize them.
package wire

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/burst/stream"
)

// FrameType identifies the frame category.
type FrameType string

const (
	// FrameEvent carries one stream event (server to client).
	FrameEvent FrameType = "event"

	// FrameCredits grants the server more events (client to server).
	FrameCredits FrameType = "credits"

	// FrameEnd follows the final event of a run (server to client).
	FrameEnd FrameType = "end"

	FrameErr  FrameType = "error"
	FramePing FrameType = "ping"
	FramePong FrameType = "pong"
)

// Frame is the envelope of every message on a run-event connection.
type Frame struct {
	ID      string        `json:"id" msgpack:"id"`
	Type    FrameType     `json:"type" msgpack:"type"`
	Channel string        `json:"channel,omitempty" msgpack:"channel,omitempty"`
	Event   *stream.Event `json:"event,omitempty" msgpack:"event,omitempty"`
	Credits int64         `json:"credits,omitempty" msgpack:"credits,omitempty"`
	Error   *ErrorDetail  `json:"error,omitempty" msgpack:"error,omitempty"`

	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes an error frame.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest = 400
	ErrCodeNotFound   = 404
	ErrCodeInternal   = 500
)

func newFrame(t FrameType) *Frame {
	return &Frame{ID: uuid.NewString(), Type: t, Timestamp: time.Now().UTC()}
}

// NewEventFrame wraps evt.
func NewEventFrame(evt *stream.Event) *Frame {
	f := newFrame(FrameEvent)
	f.Channel = evt.Topic
	f.Event = evt
	return f
}

// NewCreditsFrame grants n credits.
func NewCreditsFrame(n int64) *Frame {
	f := newFrame(FrameCredits)
	f.Credits = n
	return f
}

// NewEndFrame marks the end of channel.
func NewEndFrame(channel string) *Frame {
	f := newFrame(FrameEnd)
	f.Channel = channel
	return f
}

// NewErrorFrame reports an error to the peer.
func NewErrorFrame(code int, message string) *Frame {
	f := newFrame(FrameErr)
	f.Error = &ErrorDetail{Code: code, Message: message}
	return f
}

// NewPingFrame returns a keepalive probe.
func NewPingFrame() *Frame { return newFrame(FramePing) }

// NewPongFrame answers a ping.
func NewPongFrame() *Frame { return newFrame(FramePong) }

// Decode unmarshals the event payload into v.
func (f *Frame) Decode(v any) error {
	if f.Event == nil {
		return nil
	}
	return json.Unmarshal(f.Event.Data, v)
}
