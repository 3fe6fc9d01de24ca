package transport

import (
	"bytes"
	"testing"

	"github.com/hollowcrest/orbstorm-mp/shared/wire"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	frame := EncodeFrame(wire.OpPlayerInput, payload)

	op, got, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if op != wire.OpPlayerInput {
		t.Fatalf("opcode = %v, want %v", op, wire.OpPlayerInput)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %x, want %x", got, payload)
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	frame := EncodeFrame(wire.OpEndMatch, nil)
	op, payload, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if op != wire.OpEndMatch || len(payload) != 0 {
		t.Fatalf("got op=%v payload=%x", op, payload)
	}
}

func TestFrameEmptyInput(t *testing.T) {
	if _, _, err := DecodeFrame(nil); err == nil {
		t.Fatal("expected error for empty frame")
	}
}
