// Package protocol implements the simgate client wire protocol.
//
// Every message exchanged with a client is an Envelope:
//
//	{"requestID": "c1-7", "type": "init_url", "data": "https://example.org/model.json"}
//
// requestID is a client-chosen correlation token echoed on direct replies
// and omitted on broadcasts. data is an opaque string; structured payloads
// (queue positions, script lists, watch lists) are JSON documents carried
// inside it.
//
// # Framing
//
// Clients send envelopes as websocket text frames containing plain JSON.
// The server sends every envelope as a single binary frame holding the JSON
// document compressed with LZ4 (frame format). Inbound binary frames are
// accepted and are expected to use the same compression.
//
//	frame, err := protocol.EncodeFrame(protocol.NewEnvelope("", protocol.OutServerAvailable, ""))
//	env, err := protocol.DecodeFrame(true, frame)
package protocol
