package frame_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fieldforge/mowerlink/internal/frame"
)

func TestEncodeEmptyPayloadVector(t *testing.T) {
	t.Parallel()

	got, err := frame.Encode(nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []byte{0xAA, 0x00, 0xFF, 0x56}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode(nil) = % X, want % X", got, want)
	}
}

func TestVarintVectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload int
		want    []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"127", 127, []byte{0x7F}},
		{"128", 128, []byte{0x80, 0x01}},
		{"16383", 16383, []byte{0xFF, 0x7F}},
		{"16384", 16384, []byte{0x80, 0x80, 0x01}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			payload := make([]byte, tc.payload)
			encoded, err := frame.Encode(payload)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			// Length varint starts right after the SOF byte.
			got := encoded[1 : 1+len(tc.want)]
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("varint for length %d = % X, want % X", tc.payload, got, tc.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"short", []byte{0x01, 0x02, 0x03}},
		{"127 bytes", bytes.Repeat([]byte{0xAB}, 127)},
		{"128 bytes", bytes.Repeat([]byte{0xCD}, 128)},
		{"16384 bytes", bytes.Repeat([]byte{0xEF}, 16384)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			encoded, err := frame.Encode(tc.payload)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			payload, consumed, err := frame.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if consumed != len(encoded) {
				t.Fatalf("consumed = %d, want %d", consumed, len(encoded))
			}
			if !bytes.Equal(payload, tc.payload) {
				t.Fatalf("payload = % X, want % X", payload, tc.payload)
			}
		})
	}
}

func TestDecodeTrailingBytesPreserved(t *testing.T) {
	t.Parallel()

	encoded, err := frame.Encode([]byte("hello"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tail := []byte{0x01, 0x02, 0x03}

	payload, consumed, err := frame.Decode(append(encoded, tail...))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("consumed = %d, want %d (tail must not be consumed)", consumed, len(encoded))
	}
	if !bytes.Equal(payload, []byte("hello")) {
		t.Fatalf("payload = %q, want %q", payload, "hello")
	}
}

func TestDecodeIncomplete(t *testing.T) {
	t.Parallel()

	encoded, err := frame.Encode([]byte("hello world"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	for n := 0; n < len(encoded); n++ {
		_, _, err := frame.Decode(encoded[:n])
		if !errors.Is(err, frame.ErrIncomplete) {
			t.Fatalf("Decode(encoded[:%d]) err = %v, want ErrIncomplete", n, err)
		}
	}
}

func TestDecodeInvalidSOF(t *testing.T) {
	t.Parallel()

	_, _, err := frame.Decode([]byte{0xBB, 0x00, 0x00, 0x00})
	if !errors.Is(err, frame.ErrInvalidSOF) {
		t.Fatalf("err = %v, want ErrInvalidSOF", err)
	}
}

func TestDecodeLengthTooLong(t *testing.T) {
	t.Parallel()

	buf := []byte{0xAA, 0x80, 0x80, 0x80, 0x01}
	_, _, err := frame.Decode(buf)
	if !errors.Is(err, frame.ErrLengthTooLong) {
		t.Fatalf("err = %v, want ErrLengthTooLong", err)
	}
}

func TestDecodeChecksumMismatchOnBitFlip(t *testing.T) {
	t.Parallel()

	encoded, err := frame.Encode([]byte{0x01, 0x02, 0x03, 0x04})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Flip a single bit in every payload byte; every flip must surface as
	// ErrChecksumMismatch (spec.md §8 property 4).
	for i := 2; i < len(encoded)-2; i++ {
		mutated := append([]byte(nil), encoded...)
		mutated[i] ^= 0x01

		_, _, err := frame.Decode(mutated)
		if !errors.Is(err, frame.ErrChecksumMismatch) {
			t.Fatalf("byte %d flip: err = %v, want ErrChecksumMismatch", i, err)
		}
	}
}

func TestEncodePayloadTooLarge(t *testing.T) {
	t.Parallel()

	_, err := frame.Encode(make([]byte, frame.MaxPayloadLen+1))
	if !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
}
