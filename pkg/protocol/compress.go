package protocol

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/simgate-dev/simgate/internal/errors"
)

// Compress compresses data into a single LZ4 frame.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, errors.New("E201").Wrap(err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.New("E201").Wrap(err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates an LZ4 frame produced by Compress.
// Output larger than MaxDecompressedSize is rejected.
func Decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(io.LimitReader(r, MaxDecompressedSize+1))
	if err != nil {
		return nil, errors.New("E201").Wrap(err)
	}
	if len(out) > MaxDecompressedSize {
		return nil, errors.New("E201").WithDetail("decompressed frame exceeds size limit")
	}
	return out, nil
}
