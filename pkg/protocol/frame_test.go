package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/simgate-dev/simgate/internal/errors"
)

func TestCompressRoundTrip(t *testing.T) {
	inputs := [][]byte{
		[]byte("x"),
		[]byte(strings.Repeat(`{"type":"scene_update","data":"0.001"}`, 500)),
	}
	for _, in := range inputs {
		packed, err := Compress(in)
		if err != nil {
			t.Fatalf("Compress() error = %v", err)
		}
		out, err := Decompress(packed)
		if err != nil {
			t.Fatalf("Decompress() error = %v", err)
		}
		if !bytes.Equal(out, in) {
			t.Errorf("round trip mismatch for %d bytes", len(in))
		}
	}
}

func TestCompressShrinksRepetitiveData(t *testing.T) {
	in := []byte(strings.Repeat("abcdefgh", 4096))
	packed, err := Compress(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(packed) >= len(in) {
		t.Errorf("compressed %d bytes into %d", len(in), len(packed))
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	_, err := Decompress([]byte("definitely not lz4"))
	if !errors.HasCode(err, "E201") {
		t.Errorf("Decompress() error = %v, want E201", err)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	env := NewEnvelope("c9-3", OutSimulationLoaded, "")
	frame, err := EncodeFrame(env)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	got, err := DecodeFrame(true, frame)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if *got != *env {
		t.Errorf("DecodeFrame() = %+v, want %+v", *got, *env)
	}
}

func TestDecodeTextFrame(t *testing.T) {
	got, err := DecodeFrame(false, []byte(`{"requestID":"c1-1","type":"geppetto_version"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != InVersion || got.RequestID != "c1-1" {
		t.Errorf("DecodeFrame() = %+v", got)
	}
}
