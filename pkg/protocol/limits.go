package protocol

const (
	// MaxDecompressedSize bounds the size of a decompressed inbound frame.
	MaxDecompressedSize = 16 << 20
)
