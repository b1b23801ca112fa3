package server

import (
	"context"

	"github.com/simgate-dev/simgate/pkg/protocol"
	"github.com/simgate-dev/simgate/pkg/session"
)

// Request is one decoded inbound message. Conn and Envelope are always set
// for requests the Controller dispatches.
type Request struct {
	Conn     *session.Connection
	Envelope *protocol.Envelope
}

// ConnID returns the id of the sending connection.
func (r *Request) ConnID() string {
	return r.Conn.ID()
}

// Type returns the message type.
func (r *Request) Type() protocol.MessageType {
	return r.Envelope.Type
}

// RequestID returns the client's correlation id.
func (r *Request) RequestID() string {
	return r.Envelope.RequestID
}

// Data returns the message payload.
func (r *Request) Data() string {
	return r.Envelope.Data
}

// HandlerFunc handles one inbound message.
type HandlerFunc func(ctx context.Context, req *Request) error

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h with mws. The first middleware is the outermost.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}
