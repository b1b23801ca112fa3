package protocol

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/simgate-dev/simgate/internal/errors"
)

// Envelope is the request/response unit exchanged with clients.
type Envelope struct {
	// RequestID correlates a reply with the request that caused it.
	// Empty on broadcasts.
	RequestID string `json:"requestID,omitempty"`

	// Type is the message type.
	Type MessageType `json:"type"`

	// Data is the opaque payload.
	Data string `json:"data,omitempty"`
}

// NewEnvelope creates an Envelope.
func NewEnvelope(requestID string, typ MessageType, data string) *Envelope {
	return &Envelope{RequestID: requestID, Type: typ, Data: data}
}

// Encode serializes the envelope to JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a JSON envelope.
//
// Type names are matched case-insensitively and normalized to lower case.
// A missing type is an error. A non-string data field (clients sometimes
// send a JSON object) is kept verbatim as its JSON text.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var raw struct {
		RequestID *string         `json:"requestID"`
		Type      string          `json:"type"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.New("E200").Wrap(err)
	}
	typ := strings.ToLower(strings.TrimSpace(raw.Type))
	if typ == "" {
		return nil, errors.New("E200").WithDetail("missing type field")
	}

	env := &Envelope{Type: MessageType(typ)}
	if raw.RequestID != nil {
		env.RequestID = *raw.RequestID
	}

	payload := bytes.TrimSpace(raw.Data)
	switch {
	case len(payload) == 0, bytes.Equal(payload, []byte("null")):
	case payload[0] == '"':
		if err := json.Unmarshal(payload, &env.Data); err != nil {
			return nil, errors.New("E200").Wrap(err)
		}
	default:
		env.Data = string(payload)
	}
	return env, nil
}
