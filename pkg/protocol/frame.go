package protocol

// EncodeFrame serializes and compresses an envelope for a binary websocket frame.
func EncodeFrame(env *Envelope) ([]byte, error) {
	data, err := env.Encode()
	if err != nil {
		return nil, err
	}
	return Compress(data)
}

// DecodeFrame decodes an inbound websocket message. Binary messages are
// LZ4 compressed, text messages are plain JSON.
func DecodeFrame(binary bool, data []byte) (*Envelope, error) {
	if binary {
		plain, err := Decompress(data)
		if err != nil {
			return nil, err
		}
		data = plain
	}
	return DecodeEnvelope(data)
}
